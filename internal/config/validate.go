package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.API.RestURL == "" {
		return errors.New("api.rest_url is required")
	}
	if c.API.WSURL == "" {
		return errors.New("api.ws_url is required")
	}
	if !strings.HasPrefix(c.API.WSURL, "ws://") && !strings.HasPrefix(c.API.WSURL, "wss://") {
		return fmt.Errorf("api.ws_url must start with ws:// or wss://, got %q", c.API.WSURL)
	}
	if c.API.Token == "" && c.API.TokenPath == "" {
		return errors.New("api.token or api.token_path is required")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if !strings.Contains(c.Channels.ConversationPath, "{id}") {
		return errors.New("channels.conversation_path must contain {id}")
	}
	for _, f := range []struct {
		name string
		d    time.Duration
	}{
		{"channels.feed_heartbeat", c.Channels.FeedHeartbeat},
		{"channels.messaging_heartbeat", c.Channels.MessagingHeartbeat},
		{"channels.notifications_heartbeat", c.Channels.NotificationsHeartbeat},
		{"channels.reconnect_base_delay", c.Channels.ReconnectBaseDelay},
		{"poller.feed_interval", c.Poller.FeedInterval},
		{"poller.messages_interval", c.Poller.MessagesInterval},
		{"poller.notifications_interval", c.Poller.NotificationsInterval},
	} {
		if f.d <= 0 {
			return fmt.Errorf("%s must be > 0", f.name)
		}
	}
	if c.Channels.ReconnectMaxDelay < c.Channels.ReconnectBaseDelay {
		return fmt.Errorf("channels.reconnect_max_delay (%s) cannot be below reconnect_base_delay (%s)",
			c.Channels.ReconnectMaxDelay, c.Channels.ReconnectBaseDelay)
	}
	if c.Channels.StaleTimeout < 0 {
		return errors.New("channels.stale_timeout must be >= 0")
	}

	if err := c.Cache.validate(); err != nil {
		return err
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	return nil
}

func (c *CacheConfig) validate() error {
	switch c.Backend {
	case "memory":
	case "file":
		if c.Dir == "" {
			return errors.New("cache.dir is required when backend=file")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required when backend=redis")
		}
		if c.Redis.TTL < 0 {
			return errors.New("cache.redis.ttl must be >= 0")
		}
	case "postgres":
		return c.Postgres.validate("cache.postgres")
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Backend)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
