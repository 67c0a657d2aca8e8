package reconcile

import (
	"time"

	"github.com/rickgao/feedsync/internal/loop"
)

// DefaultDebounceWindow is how long refetch hints are coalesced.
const DefaultDebounceWindow = 250 * time.Millisecond

// Debouncer coalesces triggers that arrive within a window into a single
// call. The first trigger arms the window; further triggers while it is
// armed are absorbed. Must be used from the loop.
type Debouncer struct {
	loop   *loop.Loop
	window time.Duration
	fn     func()
	timer  *loop.Timer

	triggers int
	fires    int
}

// NewDebouncer creates a debouncer that calls fn once per window.
func NewDebouncer(lp *loop.Loop, window time.Duration, fn func()) *Debouncer {
	return &Debouncer{loop: lp, window: window, fn: fn}
}

// Trigger records a hint.
func (d *Debouncer) Trigger() {
	d.triggers++
	if d.timer.Active() {
		return
	}
	d.timer = d.loop.AfterFunc(d.window, func() {
		d.timer = nil
		d.fires++
		d.fn()
	})
}

// Cancel drops a pending call.
func (d *Debouncer) Cancel() {
	d.timer.Stop()
	d.timer = nil
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	return d.timer.Active()
}

// Counts returns how many triggers were received and how many calls fired.
func (d *Debouncer) Counts() (triggers, fires int) {
	return d.triggers, d.fires
}
