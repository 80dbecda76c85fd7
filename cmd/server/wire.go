package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/xtding233/wish-ledger/internal/config"
	"github.com/xtding233/wish-ledger/internal/ledger"
	"github.com/xtding233/wish-ledger/internal/logger"
	"github.com/xtding233/wish-ledger/internal/redislock"
	"github.com/xtding233/wish-ledger/internal/store/bolt"
	"github.com/xtding233/wish-ledger/internal/store/memory"
	"github.com/xtding233/wish-ledger/internal/store/postgres"
	"github.com/xtding233/wish-ledger/internal/store/sqlite"
)

func openStore(ctx context.Context, cfg config.StoreConfig) (ledger.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.Open(ctx, cfg.SQLite.Path)
	case "postgres":
		return postgres.Open(ctx, cfg.Postgres.DSN, postgres.WithMaxConns(cfg.Postgres.MaxConns))
	case "bolt":
		return bolt.Open(cfg.Bolt.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// newLocker returns the locker and a func releasing its resources.
func newLocker(ctx context.Context, cfg config.LockConfig, log logger.Logger) (ledger.Locker, func() error, error) {
	switch cfg.Driver {
	case "", "local":
		return ledger.NewKeyedLocker(), func() error { return nil }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
		}
		lk := redislock.New(client, redislock.Config{
			KeyPrefix:     cfg.Redis.KeyPrefix,
			TTL:           cfg.Redis.TTL,
			RetryInterval: cfg.Redis.RetryInterval,
		}, log)
		return lk, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock driver %q", cfg.Driver)
	}
}
