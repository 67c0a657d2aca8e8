package channel

import (
	"log/slog"

	"github.com/rickgao/feedsync/internal/loop"
	"github.com/rickgao/feedsync/internal/model"
	"github.com/rickgao/feedsync/internal/reconcile"
	"github.com/rickgao/feedsync/internal/state"
)

// Feed keeps the home feed current. The socket only carries hints that
// something changed; every hint leads to a full refetch, and hints that
// arrive close together share one.
type Feed struct {
	*base

	endpoints Endpoints
	refresher *state.Refresher[[]model.FeedItem]
	debounce  *reconcile.Debouncer
}

// NewFeed creates an idle feed channel. refresher fetches and applies the
// full feed.
func NewFeed(lp *loop.Loop, endpoints Endpoints, opts Options, refresher *state.Refresher[[]model.FeedItem], logger *slog.Logger) *Feed {
	f := &Feed{
		endpoints: endpoints,
		refresher: refresher,
	}
	f.base = newBase(lp, opts, func() { refresher.Refresh(false) }, logger)
	f.base.dispatch = f.dispatch

	window := opts.Debounce
	if window <= 0 {
		window = reconcile.DefaultDebounceWindow
	}
	// A hint means the in-flight fetch may predate the change, so the
	// refetch supersedes it.
	f.debounce = reconcile.NewDebouncer(lp, window, func() { refresher.Refresh(true) })
	return f
}

// Open connects the feed socket.
func (f *Feed) Open() {
	f.open(f.endpoints.FeedURL)
}

// Close disconnects and cancels any pending refetch hint.
func (f *Feed) Close() {
	f.debounce.Cancel()
	f.close()
}

// Refresh refetches the feed. force supersedes a fetch in flight.
func (f *Feed) Refresh(force bool) bool {
	return f.refresher.Refresh(force)
}

func (f *Feed) dispatch(ev Event) {
	switch ev.Type {
	case TypePostCreated:
		f.debounce.Trigger()
	default:
		f.ignore(ev)
	}
}
