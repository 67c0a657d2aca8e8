package channel

import (
	"log/slog"
	"time"

	"github.com/rickgao/feedsync/internal/connection"
	"github.com/rickgao/feedsync/internal/loop"
	"github.com/rickgao/feedsync/internal/metrics"
	"github.com/rickgao/feedsync/internal/poller"
)

// Options configures one channel.
type Options struct {
	Conn     connection.ChannelConfig
	Poll     poller.Config
	Factory  connection.ClientFactory // nil uses the gorilla client
	Debounce time.Duration            // Feed refetch hint window
}

// Status summarizes a channel for display.
type Status struct {
	Kind     connection.Kind  `json:"kind"`
	State    connection.State `json:"state"`
	Polling  bool             `json:"polling"`
	Polls    int              `json:"polls"`
	Opens    int              `json:"opens"`
	Failures int              `json:"failures"`
}

// base is the part every channel shares: socket lifecycle, frame decoding
// and the socket/polling handover.
type base struct {
	kind   connection.Kind
	loop   *loop.Loop
	conn   *connection.Channel
	poll   *poller.Scheduler
	logger *slog.Logger

	refresh   func()
	dispatch  func(Event)
	observers []func(Event)
}

func newBase(lp *loop.Loop, opts Options, refresh func(), logger *slog.Logger) *base {
	if logger == nil {
		logger = slog.Default()
	}
	kind := opts.Conn.Kind

	b := &base{
		kind:    kind,
		loop:    lp,
		conn:    connection.NewChannel(opts.Conn, lp, opts.Factory, logger),
		poll:    poller.New(opts.Poll, lp, refresh, logger),
		logger:  logger.With("channel", kind),
		refresh: refresh,
	}

	// Frames sent while the socket was down are lost, so every open is
	// followed by a catch-up fetch. It is dropped if a poll is in flight.
	b.conn.OnOpen(func() {
		b.poll.Stop()
		b.refresh()
	})
	b.conn.OnClose(func(err error) {
		if b.conn.Wanted() {
			b.poll.Start()
		} else {
			b.poll.Stop()
		}
	})
	b.conn.OnMessage(b.handleFrame)
	return b
}

// OnEvent registers an observer called after every dispatched event.
func (b *base) OnEvent(fn func(Event)) {
	b.observers = append(b.observers, fn)
}

// Inject dispatches a synthetic event as if it had arrived on the socket.
func (b *base) Inject(ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	b.deliver(ev)
	return nil
}

// State returns the socket state.
func (b *base) State() connection.State {
	return b.conn.State()
}

// Polling reports whether the polling fallback is running.
func (b *base) Polling() bool {
	return b.poll.Active()
}

// Status returns a summary of the channel.
func (b *base) Status() Status {
	st := b.conn.Stats()
	return Status{
		Kind:     b.kind,
		State:    st.State,
		Polling:  b.poll.Active(),
		Polls:    b.poll.Polls(),
		Opens:    st.Opens,
		Failures: st.Failures,
	}
}

// open connects and, until the socket is up, polls.
func (b *base) open(url connection.URLFunc) {
	b.conn.Open(url)
	if b.conn.State() != connection.StateOpen {
		b.poll.Start()
	}
}

// close tears down the socket and stops polling.
func (b *base) close() {
	b.conn.Close()
	b.poll.Stop()
}

func (b *base) handleFrame(raw []byte) {
	ev, err := Decode(raw)
	if err != nil {
		metrics.MalformedFrames.WithLabelValues(string(b.kind)).Inc()
		b.logger.Warn("discarding malformed frame",
			"error", err,
			"bytes", len(raw),
		)
		return
	}
	b.deliver(ev)
}

func (b *base) deliver(ev Event) {
	metrics.Frames.WithLabelValues(string(b.kind), frameLabel(ev.Type)).Inc()

	switch ev.Type {
	case TypeReady, TypePong:
	default:
		b.dispatch(ev)
	}

	for _, fn := range b.observers {
		fn(ev)
	}
}

// frameLabel maps a frame type to a metric label. Types this package does
// not know share one label.
func frameLabel(typ string) string {
	switch typ {
	case TypeReady, TypePong, TypePostCreated,
		TypeMessageCreated, TypeMessageDeleted,
		TypeNotificationCreated, TypeNotificationReadAll:
		return typ
	}
	return "unknown"
}

// ignore logs an event type this channel does not handle.
func (b *base) ignore(ev Event) {
	b.logger.Debug("ignoring event", "type", ev.Type)
}
