// Package database manages the postgres connection pool used by the postgres
// document store: connection retry, migrations, metrics and health checks.
package database

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"planethero/internal/config"

	"go.uber.org/zap"
)

// Open validates cfg, connects and, when AutoMigrate is set, runs migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig, environment string, connectTimeout time.Duration, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := validateAndEnhanceDatabaseConfig(&cfg, environment); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	manager, err := NewManager(ctx, &cfg, connectTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}

	if cfg.AutoMigrate {
		migrationsPath := determineMigrationsPath(cfg.MigrationsPath)
		if err := runMigrationsWithRetry(ctx, manager, migrationsPath, logger, 3); err != nil {
			manager.Close()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	health := manager.Health(ctx)
	if health.Status == StatusUnhealthy {
		manager.Close()
		return nil, fmt.Errorf("database unhealthy after startup: %s", strings.Join(health.Errors, "; "))
	}

	stats := manager.Stats()
	logger.Info("Database initialized",
		zap.String("status", health.Status),
		zap.Duration("response_time", health.ResponseTime),
		zap.Int("max_open_connections", stats.MaxOpenConnections),
	)

	return manager, nil
}

func validateAndEnhanceDatabaseConfig(cfg *config.DatabaseConfig, environment string) error {
	if cfg.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if environment == "production" && !strings.Contains(cfg.URL, "sslmode=") {
		if strings.Contains(cfg.URL, "?") {
			cfg.URL += "&sslmode=require"
		} else if strings.HasPrefix(cfg.URL, "postgres") {
			cfg.URL += "?sslmode=require"
		} else {
			cfg.URL += " sslmode=require"
		}
	}

	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns > cfg.MaxOpenConns {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 100 * time.Millisecond
	}

	return nil
}

func runMigrationsWithRetry(ctx context.Context, manager *Manager, migrationsPath string, logger *zap.Logger, maxRetries int) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		logger.Info("Running database migrations",
			zap.String("path", migrationsPath),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries))

		lastErr = manager.Migrate(migrationsPath)
		if lastErr == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}

		waitTime := time.Duration(attempt) * time.Second
		logger.Warn("Migration attempt failed, retrying",
			zap.Error(lastErr),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", waitTime))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return fmt.Errorf("migrations failed after %d attempts: %w", maxRetries, lastErr)
}

func determineMigrationsPath(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	paths := []string{
		"./migrations",
		"../migrations",
		"../../migrations",
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "./migrations"
}
