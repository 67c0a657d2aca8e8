package cache

import (
	"context"
	"fmt"

	"github.com/rickgao/feedsync/internal/config"
	"github.com/rickgao/feedsync/internal/database"
)

// New creates the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil

	case "file", "":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("cache dir is required when backend=file")
		}
		return NewFileStore(cfg.Dir), nil

	case "redis":
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis addr is required when backend=redis")
		}
		return NewRedisStore(ctx, RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.TTL,
		})

	case "postgres":
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect cache database: %w", err)
		}
		store := NewPostgresStore(pool, pool.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}
