package session

import (
	"log/slog"

	"github.com/rickgao/feedsync/internal/channel"
	"github.com/rickgao/feedsync/internal/config"
	"github.com/rickgao/feedsync/internal/connection"
	"github.com/rickgao/feedsync/internal/loop"
	"github.com/rickgao/feedsync/internal/poller"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClock replaces the wall clock driving timers, heartbeats and polling.
func WithClock(clock loop.Clock) Option {
	return func(s *Session) {
		s.clock = clock
	}
}

// WithClientFactory replaces the websocket client used by every channel.
func WithClientFactory(factory connection.ClientFactory) Option {
	return func(s *Session) {
		s.factory = factory
	}
}

// endpoints builds channel URLs from the api and channels sections.
func endpoints(cfg *config.Config, token channel.TokenFunc) channel.Endpoints {
	return channel.Endpoints{
		WSURL:             cfg.API.WSURL,
		FeedPath:          cfg.Channels.FeedPath,
		ConversationPath:  cfg.Channels.ConversationPath,
		NotificationsPath: cfg.Channels.NotificationsPath,
		Token:             token,
	}
}

// channelOptions converts configuration for one channel kind.
func channelOptions(cfg *config.Config, kind connection.Kind, factory connection.ClientFactory) channel.Options {
	ch := cfg.Channels

	conn := connection.DefaultChannelConfig(kind)
	poll := poller.Config{}

	switch kind {
	case connection.KindFeed:
		conn.HeartbeatInterval = ch.FeedHeartbeat
		poll = poller.Config{Resource: poller.ResourceFeed, Interval: cfg.Poller.FeedInterval}
	case connection.KindMessaging:
		conn.HeartbeatInterval = ch.MessagingHeartbeat
		poll = poller.Config{Resource: poller.ResourceMessages, Interval: cfg.Poller.MessagesInterval}
	case connection.KindNotifications:
		conn.HeartbeatInterval = ch.NotificationsHeartbeat
		poll = poller.Config{Resource: poller.ResourceNotifications, Interval: cfg.Poller.NotificationsInterval}
	}

	conn.StaleTimeout = ch.StaleTimeout
	if conn.StaleTimeout == 0 {
		conn.StaleTimeout = conn.HeartbeatInterval * 5 / 2
	}
	conn.ReconnectBaseWait = ch.ReconnectBaseDelay
	conn.ReconnectMaxWait = ch.ReconnectMaxDelay
	conn.DialTimeout = ch.DialTimeout
	conn.Client.HandshakeTimeout = ch.DialTimeout

	return channel.Options{
		Conn:     conn,
		Poll:     poll,
		Factory:  factory,
		Debounce: ch.Debounce,
	}
}
