package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"

	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/observability"
)

const (
	// scanPageSize bounds each SCAN page so pattern deletes never issue an
	// unbounded KEYS listing against the backend
	scanPageSize = 100

	// scanPagesPerSecond throttles SCAN paging during pattern deletes and
	// category counting on large namespaces
	scanPagesPerSecond = 50

	// deleteBatchSize bounds each DEL command during pattern deletes
	deleteBatchSize = 100
)

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// NewRedisClient creates a go-redis client from the configuration. The
// caller owns the connection lifecycle.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
}

// RedisCache implements Cache using Redis
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	categories []string
	logger     observability.Logger
	limiter    *rate.Limiter
}

// NewRedisCache creates a Redis-backed cache. categories lists the key
// prefixes the stats reporter counts entries for.
func NewRedisCache(client *redis.Client, defaultTTL time.Duration, categories []string, logger observability.Logger) *RedisCache {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &RedisCache{
		client:     client,
		defaultTTL: defaultTTL,
		categories: categories,
		logger:     logger.WithPrefix("redis-cache"),
		limiter:    rate.NewLimiter(rate.Limit(scanPagesPerSecond), scanPagesPerSecond),
	}
}

// Ping probes backend liveness
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the raw value stored under key, or ErrCacheMiss
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get failed: %w", err)
	}
	return val, nil
}

// Set stores value under key with the given TTL
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// DeleteByPattern removes every key matching a Redis-style glob pattern
// using a paginated SCAN, and returns the number of keys removed.
//
// Matched keys are buffered until the cursor completes: deleting mid-scan
// shifts the cursor position on some backends and skips matching keys.
func (c *RedisCache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	var matched []string
	var cursor uint64

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanPageSize).Result()
		if err != nil {
			return 0, fmt.Errorf("cache scan failed: %w", err)
		}
		matched = append(matched, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	deleted := 0
	for start := 0; start < len(matched); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(matched) {
			end = len(matched)
		}
		n, err := c.client.Del(ctx, matched[start:end]...).Result()
		deleted += int(n)
		if err != nil {
			return deleted, fmt.Errorf("cache delete failed: %w", err)
		}
	}
	return deleted, nil
}

// Flush removes every key in the configured database
func (c *RedisCache) Flush(ctx context.Context) error {
	if err := c.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("cache flush failed: %w", err)
	}
	return nil
}

// Stats returns a snapshot built from the backend INFO counters plus a
// bounded per-category key count. A failed liveness probe is returned as an
// error so callers report a disconnected snapshot instead of zeroed counters
// with Connected set.
func (c *RedisCache) Stats(ctx context.Context) (*Stats, error) {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache backend unreachable: %w", err)
	}

	stats := &Stats{
		Connected:  true,
		Categories: make(map[string]int, len(c.categories)),
		Timestamp:  time.Now().UTC(),
	}

	if info, err := c.client.Info(ctx, "stats").Result(); err == nil {
		fields := parseInfo(info)
		stats.Hits = parseInfoInt(fields, "keyspace_hits")
		stats.Misses = parseInfoInt(fields, "keyspace_misses")
	} else {
		c.logger.Warn("failed to read INFO stats", map[string]interface{}{"error": err.Error()})
	}
	stats.HitRate = HitRate(stats.Hits, stats.Misses)

	if info, err := c.client.Info(ctx, "memory").Result(); err == nil {
		fields := parseInfo(info)
		stats.UsedMemoryBytes = parseInfoInt(fields, "used_memory")
		stats.UsedMemoryHuman = fields["used_memory_human"]
	} else {
		c.logger.Warn("failed to read INFO memory", map[string]interface{}{"error": err.Error()})
	}

	if total, err := c.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = total
	}

	for _, category := range c.categories {
		count, err := c.countKeys(ctx, category+":*")
		if err != nil {
			c.logger.Warn("failed to count category keys", map[string]interface{}{
				"category": category,
				"error":    err.Error(),
			})
			continue
		}
		stats.Categories[category] = count
	}

	return stats, nil
}

// Close releases the backend connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// countKeys counts keys matching pattern via paginated SCAN
func (c *RedisCache) countKeys(ctx context.Context, pattern string) (int, error) {
	count := 0
	var cursor uint64
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return count, err
		}
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanPageSize).Result()
		if err != nil {
			return count, err
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// parseInfo splits a Redis INFO response into key/value pairs, skipping
// section headers and blank lines
func parseInfo(info string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		fields[parts[0]] = strings.TrimSpace(parts[1])
	}
	return fields
}

func parseInfoInt(fields map[string]string, key string) int64 {
	v, err := strconv.ParseInt(fields[key], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
