package state

import (
	"log/slog"

	"github.com/rickgao/feedsync/internal/cache"
	"github.com/rickgao/feedsync/internal/loop"
	"github.com/rickgao/feedsync/internal/metrics"
	"github.com/rickgao/feedsync/internal/model"
	"github.com/rickgao/feedsync/internal/reconcile"
	"github.com/rickgao/feedsync/internal/signature"
)

// Collection is an ordered, id-unique list of records with its signature.
// Stored slices are never modified in place, so a slice handed to an
// observer or to the snapshot writer stays valid.
type Collection[T model.Record] struct {
	resource string
	policy   reconcile.Policy
	loop     *loop.Loop
	logger   *slog.Logger
	writer   *snapshotWriter[T]
	key      string

	items []T
	sig   string
	live  bool

	observers []func([]T)
}

// NewCollection creates an empty collection. snaps may be nil to disable
// persistence.
func NewCollection[T model.Record](resource string, policy reconcile.Policy, lp *loop.Loop, snaps *cache.Snapshots[T], key string, logger *slog.Logger) *Collection[T] {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collection[T]{
		resource: resource,
		policy:   policy,
		loop:     lp,
		logger:   logger.With("resource", resource),
		key:      key,
		items:    []T{},
	}
	c.sig = signature.Compute(c.items)
	if snaps != nil {
		c.writer = newSnapshotWriter(snaps)
	}
	return c
}

// OnChange registers an observer called with the new items after every
// change.
func (c *Collection[T]) OnChange(fn func(items []T)) {
	c.observers = append(c.observers, fn)
}

// Items returns a copy of the current items.
func (c *Collection[T]) Items() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of items.
func (c *Collection[T]) Len() int { return len(c.items) }

// Signature returns the signature of the current items.
func (c *Collection[T]) Signature() string { return c.sig }

// Key returns the cache key snapshots are written under.
func (c *Collection[T]) Key() string { return c.key }

// Live reports whether a fetch, an inbound event or a local edit has been
// applied since the last Reset. A live collection ignores cached snapshots.
func (c *Collection[T]) Live() bool { return c.live }

// Contains reports whether a record with id is present.
func (c *Collection[T]) Contains(id string) bool {
	return reconcile.IndexOf(c.items, id) >= 0
}

// Get returns the record with id.
func (c *Collection[T]) Get(id string) (T, bool) {
	if i := reconcile.IndexOf(c.items, id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Restore pre-populates the collection from a cached snapshot. It is
// ignored once live data has arrived, including single merged events.
func (c *Collection[T]) Restore(entry cache.Entry[T]) bool {
	if c.live {
		c.logger.Debug("live data already applied, ignoring cached snapshot")
		return false
	}
	if entry.Signature == c.sig {
		return false
	}

	items := reconcile.Dedupe(entry.Items)
	c.items = items
	c.sig = signature.Compute(items)

	c.logger.Info("restored cached snapshot",
		"items", len(items),
		"cached_at", entry.Time(),
	)
	c.notify()
	return true
}

// Replace installs a freshly fetched list. When its signature equals the
// current one nothing changes and observers are not called.
func (c *Collection[T]) Replace(items []T) bool {
	c.live = true

	items = reconcile.Dedupe(items)
	sig := signature.Compute(items)
	if sig == c.sig {
		metrics.RenderSkips.WithLabelValues(c.resource).Inc()
		c.logger.Debug("refresh unchanged, skipping", "items", len(items))
		return false
	}

	c.commit(items, sig)
	return true
}

// Merge reconciles one inbound record. NeedsRefetch leaves the collection
// untouched; the caller is expected to refetch.
func (c *Collection[T]) Merge(rec T) reconcile.Outcome {
	out, outcome := reconcile.Merge(c.items, rec, c.policy)
	if outcome == reconcile.NeedsRefetch {
		return outcome
	}

	sig := signature.Compute(out)
	if sig == c.sig {
		metrics.RenderSkips.WithLabelValues(c.resource).Inc()
		return outcome
	}

	c.commit(out, sig)
	return outcome
}

// Update applies fn to every item and commits if any item changed.
// Returns the number of changed items.
func (c *Collection[T]) Update(fn func(T) (T, bool)) int {
	var out []T
	changed := 0
	for i, item := range c.items {
		next, ok := fn(item)
		if !ok {
			continue
		}
		if out == nil {
			out = make([]T, len(c.items))
			copy(out, c.items)
		}
		out[i] = next
		changed++
	}
	if changed == 0 {
		return 0
	}

	c.commit(out, signature.Compute(out))
	return changed
}

// Reset empties the collection and moves it to a new cache key.
func (c *Collection[T]) Reset(key string) {
	c.key = key
	c.live = false

	empty := []T{}
	sig := signature.Compute(empty)
	if sig == c.sig {
		return
	}
	c.items = empty
	c.sig = sig
	c.notify()
}

func (c *Collection[T]) commit(items []T, sig string) {
	c.live = true
	c.items = items
	c.sig = sig

	if c.writer != nil && c.key != "" {
		c.writer.save(c.loop, c.key, cache.Entry[T]{
			Items:     items,
			Signature: sig,
			CachedAt:  c.loop.Clock().Now().UnixMilli(),
		})
	}
	c.notify()
}

func (c *Collection[T]) notify() {
	for _, fn := range c.observers {
		fn(c.Items())
	}
}
