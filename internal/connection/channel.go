package connection

import (
	"context"
	"log/slog"
	"time"

	"github.com/rickgao/feedsync/internal/loop"
	"github.com/rickgao/feedsync/internal/metrics"
)

// URLFunc builds the connection URL for one attempt. It is called again on
// every reconnect so a refreshed token is picked up.
type URLFunc func() (string, error)

// Channel manages the lifecycle of one long-lived socket. All methods must
// be called from the loop; observers run on the loop too.
type Channel struct {
	cfg       ChannelConfig
	loop      *loop.Loop
	newClient ClientFactory
	logger    *slog.Logger

	url     URLFunc
	state   State
	wanted  bool
	backoff *Backoff

	// Current socket. gen is bumped whenever the socket is replaced or
	// abandoned so late events from an older socket are ignored.
	client     Client
	gen        uint64
	dialCancel context.CancelFunc

	heartbeat   *loop.Ticker
	reconnect   *loop.Timer
	lastInbound time.Time

	opens    int
	failures int

	onOpen    []func()
	onMessage []func([]byte)
	onClose   []func(error)
	onError   []func(error)
}

// NewChannel creates an idle channel. A nil factory uses NewClient.
func NewChannel(cfg ChannelConfig, lp *loop.Loop, factory ClientFactory, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	if factory == nil {
		factory = NewClient
	}

	c := &Channel{
		cfg:       cfg,
		loop:      lp,
		newClient: factory,
		logger:    logger.With("channel", cfg.Kind),
		backoff:   NewBackoff(cfg.ReconnectBaseWait, cfg.ReconnectMaxWait),
	}
	c.setState(StateIdle)
	return c
}

// OnOpen registers a handler called after every successful open.
func (c *Channel) OnOpen(fn func()) { c.onOpen = append(c.onOpen, fn) }

// OnMessage registers a handler for every inbound frame.
func (c *Channel) OnMessage(fn func(raw []byte)) { c.onMessage = append(c.onMessage, fn) }

// OnClose registers a handler called whenever a live or connecting socket
// goes away. err is nil for a deliberate Close.
func (c *Channel) OnClose(fn func(err error)) { c.onClose = append(c.onClose, fn) }

// OnError registers a handler for connect failures and drops.
func (c *Channel) OnError(fn func(err error)) { c.onError = append(c.onError, fn) }

// Open marks the channel wanted and connects. It is a no-op while the
// channel is Open, Connecting or waiting out a reconnect delay.
func (c *Channel) Open(url URLFunc) {
	c.url = url
	c.wanted = true

	if c.state == StateOpen || c.state == StateConnecting || c.reconnect.Active() {
		return
	}
	c.connect()
}

// Close cancels pending timers, marks the channel not wanted and closes the
// socket. Later failures no longer trigger reconnects.
func (c *Channel) Close() {
	c.wanted = false

	c.reconnect.Stop()
	c.reconnect = nil
	c.stopHeartbeat()

	wasLive := c.state == StateOpen || c.state == StateConnecting
	c.abandon(StateClosing)
	if c.state != StateIdle {
		c.setState(StateClosed)
	}

	if wasLive {
		c.logger.Info("channel closed")
		c.emitClose(nil)
	}
}

// Send writes a frame on the open socket.
func (c *Channel) Send(data []byte) error {
	if c.state != StateOpen || c.client == nil {
		return ErrNotConnected
	}
	return c.client.Send(data)
}

// State returns the current state.
func (c *Channel) State() State {
	return c.state
}

// Wanted reports whether the channel should be kept connected.
func (c *Channel) Wanted() bool {
	return c.wanted
}

// Stats returns current statistics.
func (c *Channel) Stats() ChannelStats {
	return ChannelStats{
		Kind:       c.cfg.Kind,
		State:      c.state,
		Opens:      c.opens,
		Failures:   c.failures,
		RetryDelay: c.backoff.Current(),
	}
}

// connect starts one connection attempt.
func (c *Channel) connect() {
	url, err := c.url()
	if err == nil && url == "" {
		err = ErrNoURL
	}
	if err != nil {
		c.logger.Warn("failed to build channel url", "error", err)
		c.setState(StateConnecting)
		c.handleDrop(c.gen, err)
		return
	}

	c.gen++
	gen := c.gen

	clientCfg := c.cfg.Client
	clientCfg.URL = url
	cl := c.newClient(clientCfg, c.logger)
	c.client = cl

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	c.dialCancel = cancel
	c.setState(StateConnecting)

	c.logger.Debug("connecting")

	loop.Async(c.loop, func() error {
		return cl.Connect(ctx)
	}, func(err error) {
		cancel()
		c.handleConnected(gen, cl, err)
	})
}

// handleConnected completes a connection attempt on the loop.
func (c *Channel) handleConnected(gen uint64, cl Client, err error) {
	if gen != c.gen {
		// Superseded by Close or a newer attempt.
		c.closeClient(cl)
		return
	}
	c.dialCancel = nil

	if err != nil {
		c.logger.Warn("channel connect failed", "error", err)
		c.handleDrop(gen, err)
		return
	}

	c.setState(StateOpen)
	c.backoff.Reset()
	c.failures = 0
	c.opens++
	c.lastInbound = c.loop.Clock().Now()

	go c.pump(gen, cl)
	c.startHeartbeat()

	c.logger.Info("channel open", "opens", c.opens)
	for _, fn := range c.onOpen {
		fn()
	}
}

// pump forwards frames from one socket to the loop in delivery order, then
// reports the drop.
func (c *Channel) pump(gen uint64, cl Client) {
	for msg := range cl.Messages() {
		data := msg.Data
		c.loop.Post(func() { c.handleFrame(gen, data) })
	}

	var err error
	select {
	case err = <-cl.Errors():
	default:
		err = ErrConnectionClosed
	}
	c.loop.Post(func() { c.handleDrop(gen, err) })
}

func (c *Channel) handleFrame(gen uint64, data []byte) {
	if gen != c.gen || c.state != StateOpen {
		return
	}
	c.lastInbound = c.loop.Clock().Now()
	for _, fn := range c.onMessage {
		fn(data)
	}
}

// handleDrop tears down the current socket after a connect failure or a
// mid-session drop and schedules a reconnect if the channel is wanted.
func (c *Channel) handleDrop(gen uint64, err error) {
	if gen != c.gen || (c.state != StateOpen && c.state != StateConnecting) {
		return
	}

	c.stopHeartbeat()
	c.abandon(StateClosed)
	c.setState(StateClosed)
	c.failures++

	for _, fn := range c.onError {
		fn(err)
	}
	c.emitClose(err)

	if c.wanted {
		c.scheduleReconnect()
	}
}

func (c *Channel) scheduleReconnect() {
	delay := c.backoff.Next()
	metrics.Reconnects.WithLabelValues(string(c.cfg.Kind)).Inc()

	c.logger.Info("scheduling reconnect",
		"delay", delay,
		"failures", c.failures,
	)

	c.reconnect = c.loop.AfterFunc(delay, func() {
		c.reconnect = nil
		if !c.wanted || c.state == StateOpen || c.state == StateConnecting {
			return
		}
		c.connect()
	})
}

// abandon detaches the current socket and closes it off the loop.
func (c *Channel) abandon(transient State) {
	c.gen++
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	if c.client != nil {
		c.setState(transient)
		c.closeClient(c.client)
		c.client = nil
	}
}

func (c *Channel) closeClient(cl Client) {
	loop.Async(c.loop, cl.Close, func(err error) {
		if err != nil {
			c.logger.Debug("close socket", "error", err)
		}
	})
}

// startHeartbeat pings immediately and then every interval. A tick that
// finds the socket silent for longer than StaleTimeout drops it instead.
func (c *Channel) startHeartbeat() {
	c.stopHeartbeat()
	c.ping()

	if c.cfg.HeartbeatInterval <= 0 {
		return
	}
	c.heartbeat = c.loop.Every(c.cfg.HeartbeatInterval, func() {
		if c.cfg.StaleTimeout > 0 {
			silent := c.loop.Clock().Now().Sub(c.lastInbound)
			if silent > c.cfg.StaleTimeout {
				c.logger.Warn("no inbound frames, connection stale",
					"silent", silent,
					"timeout", c.cfg.StaleTimeout,
				)
				c.handleDrop(c.gen, ErrStaleConnection)
				return
			}
		}
		c.ping()
	})
}

func (c *Channel) stopHeartbeat() {
	c.heartbeat.Stop()
	c.heartbeat = nil
}

func (c *Channel) ping() {
	if err := c.Send(PingFrame); err != nil {
		c.logger.Debug("failed to send ping", "error", err)
	}
}

func (c *Channel) emitClose(err error) {
	for _, fn := range c.onClose {
		fn(err)
	}
}

func (c *Channel) setState(s State) {
	c.state = s
	metrics.ChannelState.WithLabelValues(string(c.cfg.Kind)).Set(float64(s))
}
