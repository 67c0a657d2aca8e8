package config

import "time"

// Config is the root configuration for a sync session.
type Config struct {
	Session  SessionConfig  `yaml:"session"`
	API      APIConfig      `yaml:"api"`
	Channels ChannelsConfig `yaml:"channels"`
	Poller   PollerConfig   `yaml:"poller"`
	Cache    CacheConfig    `yaml:"cache"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// SessionConfig identifies this session.
type SessionConfig struct {
	ID           string `yaml:"id"`           // Generated when empty
	Conversation string `yaml:"conversation"` // Conversation opened at start, optional
}

// APIConfig holds REST and websocket endpoints and credentials.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	Token      string        `yaml:"token"`      // Bearer token
	TokenPath  string        `yaml:"token_path"` // File holding the token, re-read on every use
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ChannelsConfig holds websocket channel settings.
type ChannelsConfig struct {
	FeedPath               string        `yaml:"feed_path"`
	ConversationPath       string        `yaml:"conversation_path"` // Contains {id}
	NotificationsPath      string        `yaml:"notifications_path"`
	FeedHeartbeat          time.Duration `yaml:"feed_heartbeat"`
	MessagingHeartbeat     time.Duration `yaml:"messaging_heartbeat"`
	NotificationsHeartbeat time.Duration `yaml:"notifications_heartbeat"`
	ReconnectBaseDelay     time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay      time.Duration `yaml:"reconnect_max_delay"`
	StaleTimeout           time.Duration `yaml:"stale_timeout"` // 0 derives 2.5x heartbeat
	DialTimeout            time.Duration `yaml:"dial_timeout"`
	Debounce               time.Duration `yaml:"debounce"`
}

// PollerConfig holds polling fallback intervals.
type PollerConfig struct {
	FeedInterval          time.Duration `yaml:"feed_interval"`
	MessagesInterval      time.Duration `yaml:"messages_interval"`
	NotificationsInterval time.Duration `yaml:"notifications_interval"`
}

// CacheConfig selects and configures the snapshot cache backend.
type CacheConfig struct {
	Backend  string      `yaml:"backend"` // memory, file, redis or postgres
	Dir      string      `yaml:"dir"`
	Redis    RedisConfig `yaml:"redis"`
	Postgres DBConfig    `yaml:"postgres"`
}

// RedisConfig holds the redis cache connection.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"` // 0 keeps entries forever
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}
