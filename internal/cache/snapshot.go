package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/feedsync/internal/metrics"
	"github.com/rickgao/feedsync/internal/model"
	"github.com/rickgao/feedsync/internal/signature"
)

// Entry is a persisted snapshot of one collection.
type Entry[T model.Record] struct {
	Items     []T    `json:"items"`
	Signature string `json:"signature"`
	CachedAt  int64  `json:"cachedAt"` // Unix ms
}

// Time returns CachedAt as a time.
func (e Entry[T]) Time() time.Time {
	return time.UnixMilli(e.CachedAt)
}

// NewEntry builds an entry for items, computing its signature.
func NewEntry[T model.Record](items []T, now time.Time) Entry[T] {
	return Entry[T]{
		Items:     items,
		Signature: signature.Compute(items),
		CachedAt:  now.UnixMilli(),
	}
}

// Snapshots reads and writes typed entries. Every failure is logged,
// counted and treated as a miss; no error escapes.
type Snapshots[T model.Record] struct {
	store  Store
	logger *slog.Logger
}

// NewSnapshots wraps store. A nil logger uses slog.Default().
func NewSnapshots[T model.Record](store Store, logger *slog.Logger) *Snapshots[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshots[T]{store: store, logger: logger}
}

// Load returns the entry for key. ok is false on a miss, on I/O or decode
// errors, and when the stored signature does not match the stored items.
func (s *Snapshots[T]) Load(ctx context.Context, key string) (entry Entry[T], ok bool) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.CacheOps.WithLabelValues("load", "miss").Inc()
			return Entry[T]{}, false
		}
		s.fail("load", key, err)
		return Entry[T]{}, false
	}

	if err := json.Unmarshal(data, &entry); err != nil {
		s.fail("load", key, err)
		return Entry[T]{}, false
	}

	if got := signature.Compute(entry.Items); got != entry.Signature {
		s.logger.Warn("cache entry signature mismatch, ignoring",
			"key", key,
			"stored", entry.Signature,
			"computed", got,
		)
		metrics.CacheOps.WithLabelValues("load", "invalid").Inc()
		return Entry[T]{}, false
	}

	metrics.CacheOps.WithLabelValues("load", "hit").Inc()
	return entry, true
}

// Save persists entry under key. Failures are logged and counted.
func (s *Snapshots[T]) Save(ctx context.Context, key string, entry Entry[T]) bool {
	if entry.Items == nil {
		entry.Items = []T{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		s.fail("save", key, err)
		return false
	}

	if err := s.store.Set(ctx, key, data); err != nil {
		s.fail("save", key, err)
		return false
	}

	metrics.CacheOps.WithLabelValues("save", "ok").Inc()
	return true
}

func (s *Snapshots[T]) fail(op, key string, err error) {
	s.logger.Warn("cache "+op+" failed", "key", key, "error", err)
	metrics.CacheOps.WithLabelValues(op, "error").Inc()
}
