package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrClosed is returned when work is posted to a closed loop.
var ErrClosed = errors.New("loop closed")

// Loop executes posted closures one at a time in FIFO order.
type Loop struct {
	queue  *Queue[func()]
	clock  Clock
	logger *slog.Logger

	inFlight atomic.Int64 // Async work not yet posted back
}

// New creates a loop. A nil clock uses the wall clock.
func New(clock Clock, logger *slog.Logger) *Loop {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:  NewQueue[func()](64),
		clock:  clock,
		logger: logger,
	}
}

// Clock returns the loop's time source.
func (l *Loop) Clock() Clock {
	return l.clock
}

// Post enqueues fn. It is safe to call from any goroutine and never blocks.
// Returns false once the loop is closed.
func (l *Loop) Post(fn func()) bool {
	return l.queue.Push(fn)
}

// Run executes posted work until ctx is cancelled or Close is called.
// Work already queued when Close is called still runs.
func (l *Loop) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, l.queue.Close)
	defer stop()

	for {
		fn, ok := l.queue.Pop()
		if !ok {
			return ctx.Err()
		}
		l.invoke(fn)
	}
}

// Close stops accepting new work.
func (l *Loop) Close() {
	l.queue.Close()
}

// Call posts fn and waits for it to run. It must not be called from inside
// the loop.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain runs queued work on the calling goroutine until the queue is empty
// and returns how many closures ran. Used when the caller itself acts as the
// loop, as tests do.
func (l *Loop) Drain() int {
	n := 0
	for {
		fn, ok := l.queue.TryPop()
		if !ok {
			return n
		}
		l.invoke(fn)
		n++
	}
}

// DrainUntil drains repeatedly until cond holds or timeout elapses. Async
// work completing on helper goroutines is picked up between passes.
func (l *Loop) DrainUntil(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		l.Drain()
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// Settle drains until no Async work is outstanding and the queue is empty.
func (l *Loop) Settle(timeout time.Duration) bool {
	return l.DrainUntil(func() bool {
		return l.inFlight.Load() == 0 && l.queue.Len() == 0
	}, timeout)
}

// Pending returns the number of queued closures.
func (l *Loop) Pending() int {
	return l.queue.Len()
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop callback panicked", "panic", r)
		}
	}()
	fn()
}

// Async runs work on a helper goroutine and posts done(result) back to the
// loop. If the loop has closed in the meantime the result is dropped.
func Async[T any](l *Loop, work func() T, done func(T)) {
	l.inFlight.Add(1)
	go func() {
		result := work()
		l.Post(func() { done(result) })
		l.inFlight.Add(-1)
	}()
}

// Timer is a one-shot loop timer. Stop must be called from the loop; once
// it returns the callback is guaranteed not to run.
type Timer struct {
	stopper Stopper
	done    bool
}

// AfterFunc runs fn on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.stopper = l.clock.AfterFunc(d, func() {
		l.Post(func() {
			if t.done {
				return
			}
			t.done = true
			fn()
		})
	})
	return t
}

// Stop cancels the timer. Safe on a nil or already fired timer.
func (t *Timer) Stop() {
	if t == nil || t.done {
		return
	}
	t.done = true
	t.stopper.Stop()
}

// Active reports whether the timer is still pending.
func (t *Timer) Active() bool {
	return t != nil && !t.done
}

// Ticker runs a callback on the loop at a fixed interval.
type Ticker struct {
	timer   *Timer
	stopped bool
}

// Every runs fn on the loop every d, starting d from now.
func (l *Loop) Every(d time.Duration, fn func()) *Ticker {
	tk := &Ticker{}
	var arm func()
	arm = func() {
		tk.timer = l.AfterFunc(d, func() {
			if tk.stopped {
				return
			}
			arm()
			fn()
		})
	}
	arm()
	return tk
}

// Stop cancels the ticker. Safe on a nil ticker.
func (tk *Ticker) Stop() {
	if tk == nil || tk.stopped {
		return
	}
	tk.stopped = true
	tk.timer.Stop()
}

// Active reports whether the ticker is still running.
func (tk *Ticker) Active() bool {
	return tk != nil && !tk.stopped
}
