// internal/cache/cache.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"planethero/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ===============================
// CACHE INTERFACE
// ===============================

// Cache is a byte-valued cache with per-entry TTL
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error

	Stats(ctx context.Context) (*CacheStats, error)
	Health(ctx context.Context) error
	Close() error
}

// CacheStats represents cache statistics
type CacheStats struct {
	Provider string  `json:"provider"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Sets     int64   `json:"sets"`
	Deletes  int64   `json:"deletes"`
	Keys     int64   `json:"keys"`
	HitRatio float64 `json:"hit_ratio"`
}

type counters struct {
	hits, misses, sets, deletes int64
}

func (c *counters) snapshot(provider string, keys int64) *CacheStats {
	stats := &CacheStats{
		Provider: provider,
		Hits:     atomic.LoadInt64(&c.hits),
		Misses:   atomic.LoadInt64(&c.misses),
		Sets:     atomic.LoadInt64(&c.sets),
		Deletes:  atomic.LoadInt64(&c.deletes),
		Keys:     keys,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRatio = float64(stats.Hits) / float64(total)
	}
	return stats
}

// ===============================
// CACHE CONFIGURATION
// ===============================

// Config holds cache configuration
type Config struct {
	Provider        string        // "memory", "redis", "none"
	TTL             time.Duration // default TTL
	MaxKeys         int           // memory cache capacity
	CleanupInterval time.Duration // memory cache sweep interval
	KeyPrefix       string

	RedisURL      string
	RedisDB       int
	RedisPassword string
	PoolSize      int
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() *Config {
	return &Config{
		Provider:        "memory",
		TTL:             30 * time.Second,
		MaxKeys:         10000,
		CleanupInterval: time.Minute,
		PoolSize:        10,
	}
}

// ConfigFrom maps the application configuration onto a cache Config
func ConfigFrom(cfg *config.Config) *Config {
	c := DefaultConfig()
	c.Provider = cfg.Cache.Provider
	if cfg.Cache.DefaultTTL > 0 {
		c.TTL = cfg.Cache.DefaultTTL
	}
	if cfg.Cache.MaxEntries > 0 {
		c.MaxKeys = cfg.Cache.MaxEntries
	}
	c.KeyPrefix = cfg.Cache.KeyPrefix
	c.RedisURL = cfg.Redis.URL
	c.RedisDB = cfg.Redis.DB
	c.RedisPassword = cfg.Redis.Password
	if cfg.Redis.PoolSize > 0 {
		c.PoolSize = cfg.Redis.PoolSize
	}
	return c
}

// ===============================
// FACTORY FUNCTION
// ===============================

// NewCache creates a new cache instance based on configuration
func NewCache(config *Config, logger *zap.Logger) (Cache, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(config.Provider) {
	case "redis":
		return NewRedisCache(config, logger)
	case "memory", "":
		logger.Info("Using in-memory cache")
		return NewMemoryCache(config, logger), nil
	case "none":
		logger.Info("Profile cache disabled")
		return noopCache{}, nil
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", config.Provider)
	}
}

// ===============================
// MEMORY CACHE IMPLEMENTATION
// ===============================

type memoryCache struct {
	mu              sync.Mutex
	items           map[string]*cacheItem
	maxKeys         int
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	logger          *zap.Logger
	counters        counters
	stopOnce        sync.Once
	stopCh          chan struct{}
	now             func() time.Time
}

type cacheItem struct {
	value      []byte
	expiresAt  time.Time
	accessedAt time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(config *Config, logger *zap.Logger) Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &memoryCache{
		items:           make(map[string]*cacheItem),
		maxKeys:         config.MaxKeys,
		defaultTTL:      config.TTL,
		cleanupInterval: config.CleanupInterval,
		logger:          logger,
		stopCh:          make(chan struct{}),
		now:             time.Now,
	}
	if c.maxKeys <= 0 {
		c.maxKeys = 10000
	}
	if c.cleanupInterval <= 0 {
		c.cleanupInterval = time.Minute
	}

	go c.cleanup()

	return c
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		atomic.AddInt64(&c.counters.misses, 1)
		return nil, false
	}

	now := c.now()
	if now.After(item.expiresAt) {
		delete(c.items, key)
		atomic.AddInt64(&c.counters.misses, 1)
		return nil, false
	}

	item.accessedAt = now
	atomic.AddInt64(&c.counters.hits, 1)
	return append([]byte(nil), item.value...), true
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxKeys {
		c.evictLRU()
	}

	now := c.now()
	c.items[key] = &cacheItem{
		value:      append([]byte(nil), value...),
		expiresAt:  now.Add(ttl),
		accessedAt: now,
	}
	atomic.AddInt64(&c.counters.sets, 1)
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; exists {
		delete(c.items, key)
		atomic.AddInt64(&c.counters.deletes, 1)
	}
	return nil
}

func (c *memoryCache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.items {
		if matchPattern(key, pattern) {
			delete(c.items, key)
			atomic.AddInt64(&c.counters.deletes, 1)
		}
	}
	return nil
}

func (c *memoryCache) Stats(ctx context.Context) (*CacheStats, error) {
	c.mu.Lock()
	keys := int64(len(c.items))
	c.mu.Unlock()
	return c.counters.snapshot("memory", keys), nil
}

func (c *memoryCache) Health(ctx context.Context) error {
	return nil
}

func (c *memoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

func (c *memoryCache) cleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stopCh:
			return
		}
	}
}

func (c *memoryCache) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expired := 0
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
			expired++
		}
	}

	if expired > 0 {
		c.logger.Debug("Cleaned up expired cache items",
			zap.Int("expired_count", expired),
			zap.Int("remaining_count", len(c.items)),
		)
	}
}

// evictLRU evicts the least recently used item. Caller holds mu.
func (c *memoryCache) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range c.items {
		if oldestKey == "" || item.accessedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.accessedAt
		}
	}

	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

// matchPattern performs simple wildcard pattern matching
func matchPattern(str, pattern string) bool {
	if pattern == "*" {
		return true
	}

	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(str, strings.TrimSuffix(pattern, "*"))
	}

	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(str, strings.TrimPrefix(pattern, "*"))
	}

	return str == pattern
}

// ===============================
// REDIS CACHE IMPLEMENTATION
// ===============================

type redisCache struct {
	client   *redis.Client
	logger   *zap.Logger
	config   *Config
	counters counters
}

// NewRedisCache creates a new Redis-based cache
func NewRedisCache(config *Config, logger *zap.Logger) (Cache, error) {
	if config == nil {
		return nil, fmt.Errorf("cache config cannot be nil")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	var options *redis.Options
	if config.RedisURL != "" {
		var err error
		options, err = redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
	} else {
		options = &redis.Options{
			Addr:     "localhost:6379",
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		}
	}

	if config.PoolSize > 0 {
		options.PoolSize = config.PoolSize
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis cache initialized",
		zap.String("addr", options.Addr),
		zap.Int("db", options.DB),
	)

	return &redisCache{
		client: client,
		logger: logger,
		config: config,
	}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		atomic.AddInt64(&r.counters.misses, 1)
		return nil, false
	} else if err != nil {
		r.logger.Error("Failed to get from Redis",
			zap.String("key", key),
			zap.Error(err))
		atomic.AddInt64(&r.counters.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&r.counters.hits, 1)
	return val, true
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.config.TTL
	}
	atomic.AddInt64(&r.counters.sets, 1)
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	atomic.AddInt64(&r.counters.deletes, 1)
	return r.client.Del(ctx, key).Err()
}

func (r *redisCache) DeletePattern(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	atomic.AddInt64(&r.counters.deletes, int64(len(keys)))
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCache) Stats(ctx context.Context) (*CacheStats, error) {
	keys, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read Redis db size: %w", err)
	}
	return r.counters.snapshot("redis", keys), nil
}

func (r *redisCache) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCache) Close() error {
	return r.client.Close()
}

// ===============================
// NO-OP CACHE
// ===============================

type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (noopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (noopCache) Delete(context.Context, string) error { return nil }

func (noopCache) DeletePattern(context.Context, string) error { return nil }

func (noopCache) Stats(context.Context) (*CacheStats, error) {
	return &CacheStats{Provider: "none"}, nil
}

func (noopCache) Health(context.Context) error { return nil }

func (noopCache) Close() error { return nil }
