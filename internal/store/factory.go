package store

import (
	"context"
	"fmt"

	"planethero/internal/config"
	"planethero/internal/database"

	"go.uber.org/zap"
)

// Open builds the document store selected by cfg.Store.Provider.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (DocumentStore, error) {
	switch cfg.Store.Provider {
	case "memory", "":
		logger.Info("Using in-memory document store")
		return NewMemoryStore(logger), nil

	case "redis":
		return NewRedisStore(ctx, RedisConfig{
			URL:            cfg.Redis.URL,
			Password:       cfg.Redis.Password,
			DB:             cfg.Redis.DB,
			PoolSize:       cfg.Redis.PoolSize,
			ConnectTimeout: cfg.Store.ConnectTimeout,
		}, logger)

	case "postgres":
		manager, err := database.Open(ctx, cfg.Database, cfg.Server.Environment, cfg.Store.ConnectTimeout, logger)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(manager, logger), nil

	default:
		return nil, fmt.Errorf("unsupported store provider: %s", cfg.Store.Provider)
	}
}
