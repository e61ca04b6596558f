package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("STORE_PROVIDER", "memory")
	t.Setenv("CACHE_PROVIDER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Server.Environment)
	assert.Equal(t, "memory", cfg.Store.Provider)
	assert.Equal(t, 30*time.Minute, cfg.Games.SessionMaxAge)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("STORE_PROVIDER", "REDIS")
	t.Setenv("CACHE_PROVIDER", "none")
	t.Setenv("GAME_SESSION_MAX_AGE", "5m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Provider)
	assert.Equal(t, "none", cfg.Cache.Provider)
	assert.Equal(t, 5*time.Minute, cfg.Games.SessionMaxAge)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  loadServerConfig("test"),
			Store:   StoreConfig{Provider: "memory"},
			Cache:   CacheConfig{Provider: "memory", DefaultTTL: time.Second},
			Auth:    AuthConfig{JWTSecret: "secret", JWTExpiry: time.Hour},
			Games:   GamesConfig{SessionMaxAge: time.Minute},
			Logging: LoggingConfig{Level: "debug"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "unknown store provider",
			mutate:  func(c *Config) { c.Store.Provider = "firestore" },
			wantErr: "STORE_PROVIDER",
		},
		{
			name:    "postgres requires url",
			mutate:  func(c *Config) { c.Store.Provider = "postgres" },
			wantErr: "DATABASE_URL",
		},
		{
			name:    "unknown cache provider",
			mutate:  func(c *Config) { c.Cache.Provider = "memcached" },
			wantErr: "CACHE_PROVIDER",
		},
		{
			name: "weak secret in production",
			mutate: func(c *Config) {
				c.Server.Environment = "production"
				c.Auth.GoogleClientID = "id"
				c.Auth.GoogleClientSecret = "secret"
			},
			wantErr: "JWT_SECRET",
		},
		{
			name:    "non-positive session age",
			mutate:  func(c *Config) { c.Games.SessionMaxAge = 0 },
			wantErr: "GAME_SESSION_MAX_AGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
