package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/chatpsy/internal/config"
	"github.com/raaihank/chatpsy/internal/logger"
	"go.uber.org/zap"
)

// RedisCache handles Redis-based caching of analysis responses
type RedisCache struct {
	client *redis.Client
	config config.CacheConfig
	logger *logger.Logger
	counters
}

// NewRedisCache creates a new Redis-based cache
func NewRedisCache(cfg config.CacheConfig, log *logger.Logger) (*RedisCache, error) {
	// Parse Redis URL
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pool
	if cfg.MaxConnections > 0 {
		opts.PoolSize = cfg.MaxConnections
	}
	opts.MinIdleConns = cfg.MinIdleConns

	c := &RedisCache{
		client: redis.NewClient(opts),
		config: cfg,
		logger: log,
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		_ = c.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Redis cache initialized successfully",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Int("max_connections", opts.PoolSize),
		zap.Duration("default_ttl", cfg.DefaultTTL))

	return c, nil
}

// Get returns a cached response. Lookup failures are logged and reported
// as misses so the caller falls through to the service.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.record(false)
		c.logger.Debug("Cache miss", zap.String("key", key))
		return nil, false, nil
	} else if err != nil {
		c.record(false)
		c.logger.Error("Cache lookup failed", zap.Error(err))
		return nil, false, nil
	}

	c.record(true)
	c.logger.Debug("Cache hit", zap.String("key", key), logger.Bytes("size", int64(len(data))))
	return data, true, nil
}

// Set stores value with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, key, value, c.config.DefaultTTL).Err(); err != nil {
		c.logger.Error("Failed to cache response", zap.Error(err))
		return fmt.Errorf("failed to cache response: %w", err)
	}
	return nil
}

// Stats returns cache performance statistics
func (c *RedisCache) Stats(ctx context.Context) (*Stats, error) {
	info, err := c.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := c.stats("redis")

	// Parse memory usage from Redis info
	for _, line := range strings.Split(info, "\r\n") {
		if memStr, ok := strings.CutPrefix(line, "used_memory:"); ok {
			if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
				stats.MemoryUsage = mem
			}
		}
	}

	// Count only our keys; the database may be shared.
	var n int64
	iter := c.client.Scan(ctx, 0, c.config.KeyPrefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err == nil {
		stats.TotalKeys = n
	}

	return stats, nil
}

// Clear removes all cached responses
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.config.KeyPrefix+":*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	// Delete keys in batches
	const batchSize = 100
	for i := 0; i < len(keys); i += batchSize {
		end := min(i+batchSize, len(keys))
		if err := c.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	c.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// maskRedisURL masks the password in a Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userPart := url[:at]
	colon := strings.LastIndex(userPart, ":")
	scheme := strings.Index(userPart, "://")
	if colon < 0 || colon == scheme {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
