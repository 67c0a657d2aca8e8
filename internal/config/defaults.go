package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout             = 15 * time.Second
	DefaultMaxRetries             = 3
	DefaultFeedPath               = "/ws/feed"
	DefaultConversationPath       = "/ws/conversations/{id}"
	DefaultNotificationsPath      = "/ws/notifications"
	DefaultFeedHeartbeat          = 30 * time.Second
	DefaultMessagingHeartbeat     = 30 * time.Second
	DefaultNotificationsHeartbeat = 45 * time.Second
	DefaultReconnectBaseDelay     = 1 * time.Second
	DefaultReconnectMaxDelay      = 30 * time.Second
	DefaultDialTimeout            = 15 * time.Second
	DefaultDebounce               = 250 * time.Millisecond
	DefaultFeedPollInterval       = 60 * time.Second
	DefaultMessagesPollInterval   = 15 * time.Second
	DefaultNotificationsPoll      = 30 * time.Second
	DefaultCacheBackend           = "file"
	DefaultCacheDir               = ".feedsync/cache"
	DefaultRedisKeyPrefix         = "feedsync:cache:"
	DefaultDBPort                 = 5432
	DefaultDBSSLMode              = "prefer"
	DefaultMaxConns               = 4
	DefaultMinConns               = 1
	DefaultMetricsPort            = 9090
	DefaultMetricsPath            = "/metrics"
	DefaultLogLevel               = "info"
)

// ApplyDefaults fills zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Channel defaults
	ch := &c.Channels
	if ch.FeedPath == "" {
		ch.FeedPath = DefaultFeedPath
	}
	if ch.ConversationPath == "" {
		ch.ConversationPath = DefaultConversationPath
	}
	if ch.NotificationsPath == "" {
		ch.NotificationsPath = DefaultNotificationsPath
	}
	if ch.FeedHeartbeat == 0 {
		ch.FeedHeartbeat = DefaultFeedHeartbeat
	}
	if ch.MessagingHeartbeat == 0 {
		ch.MessagingHeartbeat = DefaultMessagingHeartbeat
	}
	if ch.NotificationsHeartbeat == 0 {
		ch.NotificationsHeartbeat = DefaultNotificationsHeartbeat
	}
	if ch.ReconnectBaseDelay == 0 {
		ch.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if ch.ReconnectMaxDelay == 0 {
		ch.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if ch.DialTimeout == 0 {
		ch.DialTimeout = DefaultDialTimeout
	}
	if ch.Debounce == 0 {
		ch.Debounce = DefaultDebounce
	}

	// Poller defaults
	if c.Poller.FeedInterval == 0 {
		c.Poller.FeedInterval = DefaultFeedPollInterval
	}
	if c.Poller.MessagesInterval == 0 {
		c.Poller.MessagesInterval = DefaultMessagesPollInterval
	}
	if c.Poller.NotificationsInterval == 0 {
		c.Poller.NotificationsInterval = DefaultNotificationsPoll
	}

	// Cache defaults
	if c.Cache.Backend == "" {
		c.Cache.Backend = DefaultCacheBackend
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = DefaultCacheDir
	}
	if c.Cache.Redis.KeyPrefix == "" {
		c.Cache.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if c.Cache.Backend == "postgres" {
		applyDBDefaults(&c.Cache.Postgres)
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
