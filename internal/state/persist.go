package state

import (
	"context"
	"sync"
	"time"

	"github.com/rickgao/feedsync/internal/cache"
	"github.com/rickgao/feedsync/internal/loop"
	"github.com/rickgao/feedsync/internal/model"
)

const persistTimeout = 5 * time.Second

// snapshotWriter persists full snapshots off the loop. Saves may finish in
// any order; a save older than the newest one already written for the same
// key is skipped, so the store always ends up with the latest snapshot.
type snapshotWriter[T model.Record] struct {
	snaps *cache.Snapshots[T]
	seq   uint64 // loop-owned

	mu      sync.Mutex
	written map[string]uint64
}

func newSnapshotWriter[T model.Record](snaps *cache.Snapshots[T]) *snapshotWriter[T] {
	return &snapshotWriter[T]{snaps: snaps, written: make(map[string]uint64)}
}

func (w *snapshotWriter[T]) save(lp *loop.Loop, key string, entry cache.Entry[T]) {
	w.seq++
	seq := w.seq

	loop.Async(lp, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()

		if seq <= w.written[key] {
			return false
		}

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		ok := w.snaps.Save(ctx, key, entry)
		w.written[key] = seq
		return ok
	}, func(bool) {})
}
