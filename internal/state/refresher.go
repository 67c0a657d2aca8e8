package state

import (
	"context"
	"log/slog"
	"time"

	"github.com/rickgao/feedsync/internal/loop"
	"github.com/rickgao/feedsync/internal/metrics"
)

// DefaultFetchTimeout bounds one refresh.
const DefaultFetchTimeout = 30 * time.Second

// FetchFunc loads a resource. It runs off the loop.
type FetchFunc[R any] func(ctx context.Context) (R, error)

// Refresher runs at most one fetch of a resource at a time and applies the
// result on the loop.
//
// A plain refresh is dropped while another is in flight. A forced refresh
// cancels the in-flight fetch and starts over; the cancelled fetch's result
// is discarded when it eventually arrives, so a superseded request can never
// overwrite newer state. All methods must be called from the loop.
type Refresher[R any] struct {
	resource string
	loop     *loop.Loop
	fetch    FetchFunc[R]
	apply    func(R)
	notices  *Notices
	logger   *slog.Logger
	timeout  time.Duration

	gen    uint64
	cancel context.CancelFunc

	stats RefreshStats
}

// RefreshStats counts refresh outcomes.
type RefreshStats struct {
	Started    int
	Applied    int
	Failed     int
	Dropped    int // plain refresh while one was in flight
	Superseded int // result discarded after a forced refresh or Cancel
}

// NewRefresher creates a refresher. notices may be nil.
func NewRefresher[R any](resource string, lp *loop.Loop, fetch FetchFunc[R], apply func(R), notices *Notices, logger *slog.Logger) *Refresher[R] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher[R]{
		resource: resource,
		loop:     lp,
		fetch:    fetch,
		apply:    apply,
		notices:  notices,
		logger:   logger.With("resource", resource),
		timeout:  DefaultFetchTimeout,
	}
}

// SetTimeout changes the per-fetch timeout.
func (r *Refresher[R]) SetTimeout(d time.Duration) {
	r.timeout = d
}

// SetFetch swaps the fetch function, cancelling any fetch in flight.
func (r *Refresher[R]) SetFetch(fetch FetchFunc[R]) {
	r.Cancel()
	r.fetch = fetch
}

// InFlight reports whether a fetch is outstanding.
func (r *Refresher[R]) InFlight() bool {
	return r.cancel != nil
}

// Stats returns outcome counters.
func (r *Refresher[R]) Stats() RefreshStats {
	return r.stats
}

// Refresh starts a fetch. Returns false if a plain refresh was dropped
// because another fetch is in flight, or if there is nothing to fetch.
func (r *Refresher[R]) Refresh(force bool) bool {
	if r.fetch == nil {
		return false
	}
	if r.InFlight() {
		if !force {
			r.stats.Dropped++
			r.logger.Debug("refresh already in flight, dropping")
			return false
		}
		r.logger.Debug("forced refresh supersedes in-flight fetch")
		r.Cancel()
	}

	r.gen++
	gen := r.gen
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	r.cancel = cancel
	r.stats.Started++

	fetch := r.fetch
	type result struct {
		value R
		err   error
	}

	loop.Async(r.loop, func() result {
		v, err := fetch(ctx)
		return result{value: v, err: err}
	}, func(res result) {
		cancel()
		if gen != r.gen {
			r.stats.Superseded++
			r.logger.Debug("discarding superseded fetch result", "error", res.err)
			return
		}
		r.cancel = nil

		if res.err != nil {
			r.stats.Failed++
			metrics.FetchFailures.WithLabelValues(r.resource).Inc()
			r.logger.Warn("refresh failed", "error", res.err)
			if r.notices != nil {
				r.notices.Fail(r.resource, res.err)
			}
			return
		}

		r.stats.Applied++
		if r.notices != nil {
			r.notices.Recover(r.resource)
		}
		r.apply(res.value)
	})
	return true
}

// Cancel aborts the in-flight fetch, if any. Its result will be ignored.
func (r *Refresher[R]) Cancel() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.cancel = nil
	r.gen++
}
