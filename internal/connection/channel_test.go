package connection_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/rickgao/feedsync/internal/connection"
	"github.com/rickgao/feedsync/internal/connection/connectiontest"
	"github.com/rickgao/feedsync/internal/loop"
)

var errRefused = errors.New("connection refused")

type harness struct {
	t      *testing.T
	loop   *loop.Loop
	clock  *loop.FakeClock
	dialer *connectiontest.Dialer
	ch     *connection.Channel

	opens  int
	closes []error
	frames []string
}

func newHarness(t *testing.T, dialer *connectiontest.Dialer) *harness {
	t.Helper()

	clock := loop.NewFakeClock(time.Unix(1700000000, 0))
	lp := loop.New(clock, nil)

	cfg := connection.DefaultChannelConfig(connection.KindMessaging)
	h := &harness{
		t:      t,
		loop:   lp,
		clock:  clock,
		dialer: dialer,
		ch:     connection.NewChannel(cfg, lp, dialer.Factory, nil),
	}
	h.ch.OnOpen(func() { h.opens++ })
	h.ch.OnClose(func(err error) { h.closes = append(h.closes, err) })
	h.ch.OnMessage(func(raw []byte) { h.frames = append(h.frames, string(raw)) })
	return h
}

func (h *harness) open() {
	h.ch.Open(func() (string, error) { return "ws://sync.test/ws/conversations/c1?token=t", nil })
	h.settle()
}

func (h *harness) settle() {
	h.t.Helper()
	if !h.loop.Settle(2 * time.Second) {
		h.t.Fatal("loop did not settle")
	}
}

// waitState drains until the channel reaches want. Drops travel through the
// socket's pump goroutine, which Settle does not track.
func (h *harness) waitState(want connection.State) {
	h.t.Helper()
	if !h.loop.DrainUntil(func() bool { return h.ch.State() == want }, 2*time.Second) {
		h.t.Fatalf("State() = %v, want %v", h.ch.State(), want)
	}
	h.settle()
}

func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.settle()
}

func (h *harness) pendingReconnect() time.Duration {
	h.t.Helper()
	pending := h.clock.Pending()
	if len(pending) != 1 {
		h.t.Fatalf("pending timers = %v, want exactly one reconnect timer", pending)
	}
	return pending[0]
}

func TestChannel_OpenSendsImmediatePing(t *testing.T) {
	h := newHarness(t, connectiontest.NewDialer())
	h.open()

	if h.ch.State() != connection.StateOpen {
		t.Fatalf("State() = %v, want open", h.ch.State())
	}
	if h.opens != 1 {
		t.Errorf("opens = %d, want 1", h.opens)
	}

	sent := h.dialer.Last().Sent()
	if len(sent) != 1 || sent[0] != "ping" {
		t.Errorf("sent = %q, want one ping", sent)
	}

	h.advance(30 * time.Second)
	if got := len(h.dialer.Last().Sent()); got != 2 {
		t.Errorf("pings after one interval = %d, want 2", got)
	}
}

func TestChannel_OpenIsNoOpWhenConnectingOrOpen(t *testing.T) {
	h := newHarness(t, connectiontest.NewDialer())

	url := func() (string, error) { return "ws://sync.test/ws/feed", nil }
	h.ch.Open(url)
	h.ch.Open(url) // still connecting
	h.settle()
	h.ch.Open(url) // open

	h.settle()
	if n := len(h.dialer.Clients()); n != 1 {
		t.Errorf("clients dialed = %d, want 1", n)
	}
}

func TestChannel_FramesDeliveredInOrder(t *testing.T) {
	h := newHarness(t, connectiontest.NewDialer())
	h.open()

	cl := h.dialer.Last()
	cl.Deliver(`{"type":"ready"}`)
	cl.Deliver(`{"type":"message.created"}`)
	cl.Deliver(`{"type":"pong"}`)

	if !h.loop.DrainUntil(func() bool { return len(h.frames) == 3 }, 2*time.Second) {
		t.Fatalf("frames = %v, want 3", h.frames)
	}

	want := []string{`{"type":"ready"}`, `{"type":"message.created"}`, `{"type":"pong"}`}
	for i := range want {
		if h.frames[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, h.frames[i], want[i])
		}
	}
}

// Three consecutive failures back off 1s, 2s, 4s; the fourth attempt opens
// and the next failure starts over at 1s.
func TestChannel_BackoffSequence(t *testing.T) {
	dialer := connectiontest.NewDialer(errRefused, errRefused, errRefused)
	h := newHarness(t, dialer)
	h.open()

	for _, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		if h.ch.State() != connection.StateClosed {
			t.Fatalf("State() = %v, want closed", h.ch.State())
		}
		got := h.pendingReconnect()
		if got != want {
			t.Fatalf("reconnect delay = %v, want %v", got, want)
		}
		h.advance(got)
	}

	if h.ch.State() != connection.StateOpen {
		t.Fatalf("State() = %v after fourth attempt, want open", h.ch.State())
	}
	if d := h.ch.Stats().RetryDelay; d != time.Second {
		t.Errorf("RetryDelay after open = %v, want 1s", d)
	}

	dialer.Last().Drop(errors.New("connection reset"))
	h.waitState(connection.StateClosed)

	if got := h.pendingReconnect(); got != time.Second {
		t.Errorf("delay after post-open failure = %v, want 1s", got)
	}
	if len(dialer.Clients()) != 4 {
		t.Errorf("attempts = %d, want 4", len(dialer.Clients()))
	}
}

func TestChannel_BackoffCeiling(t *testing.T) {
	dialer := connectiontest.NewDialer()
	dialer.Fail(errRefused, 10)
	h := newHarness(t, dialer)
	h.open()

	var delays []time.Duration
	for i := 0; i < 8; i++ {
		d := h.pendingReconnect()
		delays = append(delays, d)
		h.advance(d)
	}

	want := []time.Duration{1, 2, 4, 8, 16, 30, 30, 30}
	for i, w := range want {
		if delays[i] != w*time.Second {
			t.Errorf("delay %d = %v, want %v", i, delays[i], w*time.Second)
		}
	}
}

func TestChannel_MidSessionDropReconnects(t *testing.T) {
	h := newHarness(t, connectiontest.NewDialer())
	h.open()

	first := h.dialer.Last()
	first.Drop(errors.New("eof"))
	h.waitState(connection.StateClosed)
	if len(h.closes) != 1 || h.closes[0] == nil {
		t.Errorf("closes = %v, want one close with an error", h.closes)
	}

	h.advance(time.Second)
	if h.ch.State() != connection.StateOpen {
		t.Fatalf("State() = %v after reconnect, want open", h.ch.State())
	}
	if h.opens != 2 {
		t.Errorf("opens = %d, want 2", h.opens)
	}
	if h.dialer.Last().URL != first.URL {
		t.Errorf("reconnect url = %q, want %q", h.dialer.Last().URL, first.URL)
	}
}

func TestChannel_StaleConnectionDropped(t *testing.T) {
	h := newHarness(t, connectiontest.NewDialer())
	h.open()

	// Stale timeout is 75s for a 30s heartbeat: ticks at 30s and 60s ping,
	// the tick at 90s finds the socket silent.
	h.advance(30 * time.Second)
	h.advance(30 * time.Second)
	if h.ch.State() != connection.StateOpen {
		t.Fatalf("State() = %v at 60s, want open", h.ch.State())
	}

	h.advance(30 * time.Second)
	if h.ch.State() != connection.StateClosed {
		t.Fatalf("State() = %v at 90s, want closed", h.ch.State())
	}
	if len(h.closes) != 1 || !errors.Is(h.closes[0], connection.ErrStaleConnection) {
		t.Errorf("closes = %v, want ErrStaleConnection", h.closes)
	}
	if got := h.pendingReconnect(); got != time.Second {
		t.Errorf("reconnect delay = %v, want 1s", got)
	}
}

func TestChannel_InboundFramesKeepConnectionFresh(t *testing.T) {
	h := newHarness(t, connectiontest.NewDialer())
	h.open()

	for i := 0; i < 5; i++ {
		h.dialer.Last().Deliver(`{"type":"pong"}`)
		want := i + 1
		h.loop.DrainUntil(func() bool { return len(h.frames) == want }, time.Second)
		h.advance(30 * time.Second)
	}

	if h.ch.State() != connection.StateOpen {
		t.Errorf("State() = %v, want open", h.ch.State())
	}
}

func TestChannel_CloseCancelsTimersAndRetries(t *testing.T) {
	h := newHarness(t, connectiontest.NewDialer())
	h.open()

	cl := h.dialer.Last()
	h.ch.Close()
	h.settle()

	if h.ch.State() != connection.StateClosed {
		t.Errorf("State() = %v, want closed", h.ch.State())
	}
	if !cl.Closed() {
		t.Error("socket not closed")
	}
	if pending := h.clock.Pending(); len(pending) != 0 {
		t.Errorf("pending timers after Close = %v, want none", pending)
	}
	if len(h.closes) != 1 || h.closes[0] != nil {
		t.Errorf("closes = %v, want one nil close", h.closes)
	}

	h.advance(time.Hour)
	if n := len(h.dialer.Clients()); n != 1 {
		t.Errorf("clients after Close = %d, want no reconnects", n)
	}
}

func TestChannel_CloseDuringBackoff(t *testing.T) {
	h := newHarness(t, connectiontest.NewDialer(errRefused))
	h.open()

	h.pendingReconnect()
	h.ch.Close()

	if pending := h.clock.Pending(); len(pending) != 0 {
		t.Errorf("pending timers = %v, want none", pending)
	}
	h.advance(time.Minute)
	if n := len(h.dialer.Clients()); n != 1 {
		t.Errorf("clients = %d, want 1", n)
	}
}

func TestChannel_CloseWhileConnectingDiscardsLateSocket(t *testing.T) {
	h := newHarness(t, connectiontest.NewDialer())

	h.ch.Open(func() (string, error) { return "ws://sync.test/ws/feed", nil })
	h.ch.Close()
	h.settle()

	if h.ch.State() != connection.StateClosed {
		t.Errorf("State() = %v, want closed", h.ch.State())
	}
	if h.opens != 0 {
		t.Errorf("opens = %d, want 0", h.opens)
	}
	if h.dialer.LiveCount() != 0 {
		t.Errorf("live sockets = %d, want 0", h.dialer.LiveCount())
	}
}

func TestChannel_URLErrorRetried(t *testing.T) {
	h := newHarness(t, connectiontest.NewDialer())

	calls := 0
	h.ch.Open(func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("no token yet")
		}
		return "ws://sync.test/ws/feed?token=t", nil
	})
	h.settle()

	if got := h.pendingReconnect(); got != time.Second {
		t.Fatalf("delay = %v, want 1s", got)
	}
	h.advance(time.Second)

	if h.ch.State() != connection.StateOpen {
		t.Errorf("State() = %v, want open", h.ch.State())
	}
}

func TestChannel_SendRequiresOpen(t *testing.T) {
	h := newHarness(t, connectiontest.NewDialer())

	if err := h.ch.Send([]byte("x")); err != connection.ErrNotConnected {
		t.Errorf("Send() = %v, want ErrNotConnected", err)
	}
}

// Random open/close/drop sequences never leave more than one live socket.
func TestChannel_AtMostOneLiveSocket(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	dialer := connectiontest.NewDialer()
	h := newHarness(t, dialer)
	url := func() (string, error) { return "ws://sync.test/ws/feed", nil }

	for i := 0; i < 300; i++ {
		switch rng.Intn(5) {
		case 0, 1:
			h.ch.Open(url)
		case 2:
			h.ch.Close()
		case 3:
			if cl := dialer.Last(); cl != nil && cl.Live() {
				cl.Drop(errors.New("reset"))
				h.waitState(connection.StateClosed)
			}
		case 4:
			h.clock.Advance(time.Duration(rng.Intn(40)) * time.Second)
		}
		h.settle()

		if n := dialer.LiveCount(); n > 1 {
			t.Fatalf("step %d: %d live sockets", i, n)
		}
		if h.ch.State() == connection.StateOpen && dialer.LiveCount() != 1 {
			t.Fatalf("step %d: open channel without a live socket", i)
		}
	}
}
