package state

import (
	"context"
	"time"

	"github.com/rickgao/feedsync/internal/cache"
	"github.com/rickgao/feedsync/internal/loop"
	"github.com/rickgao/feedsync/internal/model"
)

func newTestLoop() (*loop.Loop, *loop.FakeClock) {
	clock := loop.NewFakeClock(time.UnixMilli(1_700_000_000_000))
	return loop.New(clock, nil), clock
}

func ids[T model.Record](items []T) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.RecordID()
	}
	return out
}

func equalIDs(a []string, b ...string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// loadEntry reads a snapshot straight from the store.
func loadEntry[T model.Record](store cache.Store, key string) (cache.Entry[T], bool) {
	return cache.NewSnapshots[T](store, nil).Load(context.Background(), key)
}
