// Package connectiontest provides in-memory sockets for exercising channels
// without a network.
package connectiontest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/feedsync/internal/connection"
)

// Client is an in-memory connection.Client.
type Client struct {
	URL string

	connectErr error
	messages   chan connection.TimestampedMessage
	errors     chan error
	finish     sync.Once

	mu        sync.Mutex
	sent      [][]byte
	connected bool
	closed    bool
}

func newClient(url string, connectErr error) *Client {
	return &Client{
		URL:        url,
		connectErr: connectErr,
		messages:   make(chan connection.TimestampedMessage, 64),
		errors:     make(chan error, 1),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	if c.connectErr != nil {
		return c.connectErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return connection.ErrAlreadyClosed
	}
	c.connected = true
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	c.finish.Do(func() { close(c.messages) })
	return nil
}

func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return connection.ErrNotConnected
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *Client) Messages() <-chan connection.TimestampedMessage { return c.messages }

func (c *Client) Errors() <-chan error { return c.errors }

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Deliver queues an inbound frame.
func (c *Client) Deliver(frame string) {
	c.messages <- connection.TimestampedMessage{
		Data:       []byte(frame),
		ReceivedAt: time.Now(),
	}
}

// Drop simulates the peer going away with err.
func (c *Client) Drop(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	select {
	case c.errors <- err:
	default:
	}
	c.finish.Do(func() { close(c.messages) })
}

// Sent returns a copy of every frame written so far.
func (c *Client) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, b := range c.sent {
		out[i] = string(b)
	}
	return out
}

// Live reports whether the client connected and has not been closed or dropped.
func (c *Client) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && !c.closed
}

// Closed reports whether Close was called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Dialer hands out Clients. Each attempt consumes the next queued error; a
// nil error, or an empty queue, makes the attempt succeed.
type Dialer struct {
	mu      sync.Mutex
	results []error
	clients []*Client
}

// NewDialer returns a Dialer with the given attempt outcomes queued.
func NewDialer(results ...error) *Dialer {
	return &Dialer{results: results}
}

// Fail queues n failing attempts.
func (d *Dialer) Fail(err error, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		d.results = append(d.results, err)
	}
}

// Factory is a connection.ClientFactory.
func (d *Dialer) Factory(cfg connection.ClientConfig, _ *slog.Logger) connection.Client {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	if len(d.results) > 0 {
		err = d.results[0]
		d.results = d.results[1:]
	}
	c := newClient(cfg.URL, err)
	d.clients = append(d.clients, c)
	return c
}

// Clients returns every client created so far.
func (d *Dialer) Clients() []*Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Client(nil), d.clients...)
}

// Last returns the most recently created client, or nil.
func (d *Dialer) Last() *Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.clients) == 0 {
		return nil
	}
	return d.clients[len(d.clients)-1]
}

// LiveCount returns how many clients are currently live.
func (d *Dialer) LiveCount() int {
	n := 0
	for _, c := range d.Clients() {
		if c.Live() {
			n++
		}
	}
	return n
}
