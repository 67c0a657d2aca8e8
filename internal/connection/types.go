package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no inbound frames)")
	ErrConnectionClosed = errors.New("connection closed by peer")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrNoURL            = errors.New("channel has no url")
)

// PingFrame is the application heartbeat payload.
var PingFrame = []byte("ping")

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Kind identifies which resource a channel carries.
type Kind string

const (
	KindFeed          Kind = "feed"
	KindMessaging     Kind = "messaging"
	KindNotifications Kind = "notifications"
)

// State is the lifecycle state of a channel's connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL including the token query parameter
	HandshakeTimeout time.Duration // Dial handshake timeout
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// ChannelConfig configures a Channel.
type ChannelConfig struct {
	Kind              Kind
	HeartbeatInterval time.Duration // Ping interval while open
	StaleTimeout      time.Duration // Max silence before the socket counts as dropped (0 disables)
	ReconnectBaseWait time.Duration // First reconnect delay; restored after every successful open
	ReconnectMaxWait  time.Duration // Reconnect delay ceiling
	DialTimeout       time.Duration // Bound on one connect attempt
	Client            ClientConfig
}

// DefaultChannelConfig returns defaults for the given kind. Notifications
// heartbeat less often than feed and messaging.
func DefaultChannelConfig(kind Kind) ChannelConfig {
	heartbeat := 30 * time.Second
	if kind == KindNotifications {
		heartbeat = 45 * time.Second
	}
	return ChannelConfig{
		Kind:              kind,
		HeartbeatInterval: heartbeat,
		StaleTimeout:      heartbeat * 5 / 2,
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  30 * time.Second,
		DialTimeout:       15 * time.Second,
		Client:            DefaultClientConfig(),
	}
}

// ChannelStats provides statistics about a channel.
type ChannelStats struct {
	Kind       Kind
	State      State
	Opens      int           // Successful opens
	Failures   int           // Consecutive failures since the last open
	RetryDelay time.Duration // Delay the next reconnect would use
}
