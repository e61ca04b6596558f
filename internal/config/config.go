package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Auth     AuthConfig
	Games    GamesConfig
	Logging  LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
	MaxHeaderBytes  int
	ServerName      string
	AllowedOrigins  []string
}

// StoreConfig selects the profile document store backend
type StoreConfig struct {
	Provider       string // memory, redis, postgres
	ConnectTimeout time.Duration
}

// DatabaseConfig holds postgres settings for the postgres store
type DatabaseConfig struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	SlowQueryThreshold time.Duration
	MigrationsPath     string
	AutoMigrate        bool
}

// RedisConfig holds redis settings shared by the redis store and the redis cache
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

// CacheConfig holds profile cache settings
type CacheConfig struct {
	Provider   string // memory, redis, none
	DefaultTTL time.Duration
	KeyPrefix  string
	MaxEntries int
}

// AuthConfig holds session and identity provider settings
type AuthConfig struct {
	JWTSecret          string
	JWTExpiry          time.Duration
	JWTIssuer          string
	CookieName         string
	CookieSecure       bool
	CookieDomain       string
	StateCookieName    string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	PostLoginRedirect  string
}

// GamesConfig holds game session runner settings
type GamesConfig struct {
	SessionMaxAge time.Duration
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, loading .env.<GO_ENV> or .env first
// outside production.
func Load() (*Config, error) {
	env := getEnv("GO_ENV", "development")
	if env != "production" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		} else {
			_ = godotenv.Load()
		}
	}

	config := &Config{
		Server:   loadServerConfig(env),
		Store:    loadStoreConfig(),
		Database: loadDatabaseConfig(env),
		Redis:    loadRedisConfig(),
		Cache:    loadCacheConfig(),
		Auth:     loadAuthConfig(env),
		Games:    loadGamesConfig(),
		Logging:  loadLoggingConfig(env),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadServerConfig(env string) ServerConfig {
	config := ServerConfig{
		Port:            getEnv("PORT", "9000"),
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		Environment:     env,
		ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		GracefulTimeout: getDurationEnv("GRACEFUL_TIMEOUT", 30*time.Second),
		MaxHeaderBytes:  getIntEnv("MAX_HEADER_BYTES", 1<<20),
		ServerName:      getEnv("SERVER_NAME", "PlanetHero"),
		AllowedOrigins:  getListEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	if env == "development" {
		config.GracefulTimeout = getDurationEnv("GRACEFUL_TIMEOUT", 10*time.Second)
	}

	return config
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		Provider:       strings.ToLower(getEnv("STORE_PROVIDER", "memory")),
		ConnectTimeout: getDurationEnv("STORE_CONNECT_TIMEOUT", 30*time.Second),
	}
}

func loadDatabaseConfig(env string) DatabaseConfig {
	config := DatabaseConfig{
		URL:                getEnv("DATABASE_URL", ""),
		MaxOpenConns:       getIntEnv("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:       getIntEnv("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:    getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		SlowQueryThreshold: getDurationEnv("DB_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
		MigrationsPath:     getEnv("MIGRATIONS_PATH", "./migrations"),
		AutoMigrate:        getBoolEnv("DB_AUTO_MIGRATE", true),
	}

	if env == "production" {
		config.MaxOpenConns = getIntEnv("DB_MAX_OPEN_CONNS", 50)
		config.MaxIdleConns = getIntEnv("DB_MAX_IDLE_CONNS", 20)
		config.ConnMaxLifetime = getDurationEnv("DB_CONN_MAX_LIFETIME", 15*time.Minute)
	}

	return config
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:      getEnv("REDIS_URL", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getIntEnv("REDIS_DB", 0),
		PoolSize: getIntEnv("REDIS_POOL_SIZE", 10),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Provider:   strings.ToLower(getEnv("CACHE_PROVIDER", "memory")),
		DefaultTTL: getDurationEnv("CACHE_DEFAULT_TTL", 30*time.Second),
		KeyPrefix:  getEnv("CACHE_KEY_PREFIX", "planethero:"),
		MaxEntries: getIntEnv("CACHE_MAX_ENTRIES", 10000),
	}
}

func loadAuthConfig(env string) AuthConfig {
	return AuthConfig{
		JWTSecret:          getEnv("JWT_SECRET", "dev-jwt-secret-change-in-production"),
		JWTExpiry:          getDurationEnv("JWT_EXPIRY", 24*time.Hour),
		JWTIssuer:          getEnv("JWT_ISSUER", "planethero"),
		CookieName:         getEnv("SESSION_COOKIE_NAME", "planethero_session"),
		CookieSecure:       getBoolEnv("SESSION_SECURE", env == "production"),
		CookieDomain:       getEnv("SESSION_DOMAIN", ""),
		StateCookieName:    getEnv("OAUTH_STATE_COOKIE_NAME", "planethero_oauth_state"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:9000/auth/google/callback"),
		PostLoginRedirect:  getEnv("POST_LOGIN_REDIRECT", "/"),
	}
}

func loadGamesConfig() GamesConfig {
	return GamesConfig{
		SessionMaxAge: getDurationEnv("GAME_SESSION_MAX_AGE", 30*time.Minute),
	}
}

func loadLoggingConfig(env string) LoggingConfig {
	return LoggingConfig{
		Level:  getEnv("LOG_LEVEL", getDefaultLogLevel(env)),
		Format: getEnv("LOG_FORMAT", getDefaultLogFormat(env)),
	}
}

// ===============================
// VALIDATION
// ===============================

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}

	if c.Store.Provider == "postgres" {
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database config: %w", err)
		}
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.Auth.Validate(c.Server.Environment); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if c.Games.SessionMaxAge <= 0 {
		return fmt.Errorf("GAME_SESSION_MAX_AGE must be positive")
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if s.ReadTimeout <= 0 {
		return fmt.Errorf("ReadTimeout must be positive")
	}

	if s.WriteTimeout <= 0 {
		return fmt.Errorf("WriteTimeout must be positive")
	}

	return nil
}

func (s *StoreConfig) Validate() error {
	switch s.Provider {
	case "memory", "redis", "postgres":
		return nil
	default:
		return fmt.Errorf("unsupported STORE_PROVIDER %q", s.Provider)
	}
}

func (d *DatabaseConfig) Validate() error {
	if d.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if d.MaxOpenConns <= 0 {
		return fmt.Errorf("MaxOpenConns must be positive")
	}

	if d.MaxIdleConns < 0 {
		return fmt.Errorf("MaxIdleConns cannot be negative")
	}

	if d.MaxIdleConns > d.MaxOpenConns {
		return fmt.Errorf("MaxIdleConns cannot be greater than MaxOpenConns")
	}

	if d.ConnMaxLifetime <= 0 {
		return fmt.Errorf("ConnMaxLifetime must be positive")
	}

	return nil
}

func (c *CacheConfig) Validate() error {
	switch c.Provider {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unsupported CACHE_PROVIDER %q", c.Provider)
	}

	if c.Provider != "none" && c.DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be positive")
	}

	return nil
}

func (a *AuthConfig) Validate(env string) error {
	if a.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if env == "production" {
		if a.JWTSecret == "dev-jwt-secret-change-in-production" || len(a.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be set to at least 32 characters in production")
		}
		if a.GoogleClientID == "" || a.GoogleClientSecret == "" {
			return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required in production")
		}
	}

	if a.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY must be positive")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// ===============================
// ENV HELPERS
// ===============================

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getDefaultLogLevel(env string) string {
	switch env {
	case "production":
		return "info"
	default:
		return "debug"
	}
}

func getDefaultLogFormat(env string) string {
	switch env {
	case "production":
		return "json"
	default:
		return "console"
	}
}
