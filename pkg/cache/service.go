package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"

	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/observability"
	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/resilience"
)

// Mode reporting values
const (
	ModeConnected = "connected"
	ModeDegraded  = "degraded"
)

// Config configures the cache service
type Config struct {
	Redis RedisConfig `mapstructure:"redis"`

	// DefaultTTL applies when a caller passes a zero TTL
	DefaultTTL time.Duration `mapstructure:"default_ttl"`

	// Categories are the key prefixes counted by the stats reporter
	Categories []string `mapstructure:"categories"`

	// LocalSize enables an in-process read-through layer when > 0
	LocalSize int `mapstructure:"local_size"`

	// LocalTTL bounds staleness of the in-process layer
	LocalTTL time.Duration `mapstructure:"local_ttl"`

	Breaker resilience.CircuitBreakerConfig `mapstructure:"breaker"`

	// RecoveryInitialInterval and RecoveryMaxInterval tune the backoff of
	// the background reconnect loop while degraded
	RecoveryInitialInterval time.Duration `mapstructure:"recovery_initial_interval"`
	RecoveryMaxInterval     time.Duration `mapstructure:"recovery_max_interval"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Redis: RedisConfig{
			Address:      "localhost:6379",
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 2,
		},
		DefaultTTL:              time.Hour,
		Categories:              []string{CategoryEmbedding, CategoryProcessing, CategorySearch, CategoryContext},
		Breaker:                 resilience.DefaultCircuitBreakerConfig("cache-backend"),
		RecoveryInitialInterval: time.Second,
		RecoveryMaxInterval:     30 * time.Second,
	}
}

// Service is the explicitly constructed cache service handed to request
// handlers at startup. It owns the store lifecycle and the Connected/Degraded
// mode: when the backend cannot be reached the service swaps in the no-op
// store and keeps probing in the background, so a cache outage is invisible
// to callers except for increased latency.
type Service struct {
	cfg     Config
	logger  observability.Logger
	metrics observability.MetricsClient
	breaker *gobreaker.CircuitBreaker

	mu        sync.RWMutex
	store     Cache
	client    *redis.Client
	connected bool
	closed    bool

	recoveryCancel context.CancelFunc
	wg             sync.WaitGroup
}

// NewService creates an uninitialized cache service. Call Initialize before
// use; until then every operation behaves as a degraded-mode no-op.
func NewService(cfg Config, logger observability.Logger, metrics observability.MetricsClient) *Service {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.RecoveryInitialInterval <= 0 {
		cfg.RecoveryInitialInterval = time.Second
	}
	if cfg.RecoveryMaxInterval <= 0 {
		cfg.RecoveryMaxInterval = 30 * time.Second
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = resilience.DefaultCircuitBreakerConfig("cache-backend")
	}

	logger = logger.WithPrefix("cache-service")
	return &Service{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		breaker: resilience.NewCircuitBreaker(cfg.Breaker, logger),
		store:   NewNoOpCache(),
	}
}

// Initialize dials the backend and probes liveness. A failed probe does NOT
// fail initialization: the service starts degraded and a background loop
// keeps retrying with exponential backoff until the backend comes up. The
// cache is never a single point of failure for the services that use it.
func (s *Service) Initialize(ctx context.Context) error {
	client := NewRedisClient(s.cfg.Redis)

	pingCtx, cancel := context.WithTimeout(ctx, s.dialTimeout())
	err := client.Ping(pingCtx).Err()
	cancel()

	if err != nil {
		_ = client.Close()
		s.logger.Warn("cache backend unreachable, starting in degraded mode", map[string]interface{}{
			"address": s.cfg.Redis.Address,
			"error":   err.Error(),
		})
		s.metrics.RecordCacheMode(false)
		s.startRecovery()
		return nil
	}

	s.adopt(client)
	return nil
}

// adopt swaps in a live Redis-backed store. A recovery ping can succeed
// concurrently with Close, so the closed flag is re-checked under the lock
// and a late client is released instead of adopted.
func (s *Service) adopt(client *redis.Client) {
	var store Cache = NewRedisCache(client, s.cfg.DefaultTTL, s.cfg.Categories, s.logger)
	if s.cfg.LocalSize > 0 {
		store = NewMultiLevel(store, s.cfg.LocalSize, s.cfg.LocalTTL, s.logger)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = client.Close()
		return
	}
	s.client = client
	s.store = store
	s.connected = true
	s.mu.Unlock()

	s.metrics.RecordCacheMode(true)
	s.logger.Info("cache backend connected", map[string]interface{}{
		"address": s.cfg.Redis.Address,
	})
}

// startRecovery launches the background reconnect loop
func (s *Service) startRecovery() {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return
	}
	s.recoveryCancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = s.cfg.RecoveryInitialInterval
		policy.MaxInterval = s.cfg.RecoveryMaxInterval
		policy.MaxElapsedTime = 0 // retry until the backend comes up or we shut down

		err := backoff.Retry(func() error {
			client := NewRedisClient(s.cfg.Redis)
			pingCtx, pingCancel := context.WithTimeout(ctx, s.dialTimeout())
			err := client.Ping(pingCtx).Err()
			pingCancel()
			if err != nil {
				_ = client.Close()
				return err
			}
			s.adopt(client)
			return nil
		}, backoff.WithContext(policy, ctx))

		if err != nil && ctx.Err() == nil {
			s.logger.Warn("cache recovery loop stopped", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()
}

func (s *Service) dialTimeout() time.Duration {
	if s.cfg.Redis.DialTimeout > 0 {
		return s.cfg.Redis.DialTimeout
	}
	return 5 * time.Second
}

// currentStore returns the active store under the mode lock
func (s *Service) currentStore() Cache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// Mode reports the current store mode
func (s *Service) Mode() string {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	if !connected || s.breaker.State() == gobreaker.StateOpen {
		return ModeDegraded
	}
	return ModeConnected
}

// DeriveKey builds a deterministic cache key from a semantic payload.
// See the package-level DeriveKey for the canonicalization contract.
func (s *Service) DeriveKey(prefix string, payload map[string]interface{}) (string, error) {
	return DeriveKey(prefix, payload)
}

// GetCached returns the value stored under key. Any backend failure,
// including an open circuit breaker, degrades to a miss.
func (s *Service) GetCached(ctx context.Context, key string) ([]byte, bool) {
	start := time.Now()
	store := s.currentStore()

	var value []byte
	found := false
	_, err := s.breaker.Execute(func() (interface{}, error) {
		v, err := store.Get(ctx, key)
		if err == nil {
			value = v
			found = true
			return nil, nil
		}
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		s.logger.Warn("cache get degraded to miss", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		s.metrics.RecordCacheOperation("get", "error", time.Since(start))
		return nil, false
	}

	result := "miss"
	if found {
		result = "hit"
	}
	s.metrics.RecordCacheOperation("get", result, time.Since(start))
	return value, found
}

// SetCached stores value under key with the given TTL (0 uses the default).
// Returns whether the value was stored; failures are logged, never raised.
func (s *Service) SetCached(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	start := time.Now()
	store := s.currentStore()

	stored := false
	degraded := false
	_, err := s.breaker.Execute(func() (interface{}, error) {
		err := store.Set(ctx, key, value, ttl)
		if err == nil {
			stored = true
			return nil, nil
		}
		if errors.Is(err, ErrStoreDegraded) {
			degraded = true
			return nil, nil
		}
		return nil, err
	})

	switch {
	case err != nil:
		s.logger.Warn("cache set failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		s.metrics.RecordCacheOperation("set", "error", time.Since(start))
	case degraded:
		s.metrics.RecordCacheOperation("set", "degraded", time.Since(start))
	default:
		s.metrics.RecordCacheOperation("set", "ok", time.Since(start))
	}
	return stored
}

// GetCachedJSON reads the value under key and unmarshals it into dest.
// A corrupt entry is treated as a miss.
func (s *Service) GetCachedJSON(ctx context.Context, key string, dest interface{}) bool {
	raw, ok := s.GetCached(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("cached value failed to decode, treating as miss", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return false
	}
	return true
}

// SetCachedJSON marshals value and stores it under key. A value that cannot
// be serialized is a caller contract violation and is returned as an error;
// backend failures are reported through the bool only.
func (s *Service) SetCachedJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("cache value not serializable: %w", err)
	}
	return s.SetCached(ctx, key, data, ttl), nil
}

// SetEntry stores payload wrapped in an Entry envelope recording the
// producing operation and logical owner (for example a file hash)
func (s *Service) SetEntry(ctx context.Context, key string, payload interface{}, operation, owner string, ttl time.Duration) (bool, error) {
	entry, err := NewEntry(payload, operation, owner)
	if err != nil {
		return false, fmt.Errorf("cache payload not serializable: %w", err)
	}
	return s.SetCachedJSON(ctx, key, entry, ttl)
}

// GetEntry reads an Entry envelope stored under key
func (s *Service) GetEntry(ctx context.Context, key string) (*Entry, bool) {
	var entry Entry
	if !s.GetCachedJSON(ctx, key, &entry) {
		return nil, false
	}
	return &entry, true
}

// Invalidate removes every key matching a Redis-style glob pattern and
// returns the number removed (0 when the backend is unavailable)
func (s *Service) Invalidate(ctx context.Context, pattern string) int {
	start := time.Now()
	store := s.currentStore()

	count := 0
	_, err := s.breaker.Execute(func() (interface{}, error) {
		n, err := store.DeleteByPattern(ctx, pattern)
		count = n
		return nil, err
	})
	if err != nil {
		s.logger.Warn("cache invalidation incomplete", map[string]interface{}{
			"pattern": pattern,
			"deleted": count,
			"error":   err.Error(),
		})
		s.metrics.RecordCacheOperation("invalidate", "error", time.Since(start))
		return count
	}

	s.metrics.RecordCacheOperation("invalidate", "ok", time.Since(start))
	s.logger.Debug("cache invalidated", map[string]interface{}{
		"pattern": pattern,
		"deleted": count,
	})
	return count
}

// Flush wipes every key in the store's database. Administrative reset only.
// Returns whether the wipe was performed.
func (s *Service) Flush(ctx context.Context) bool {
	store := s.currentStore()
	if err := store.Flush(ctx); err != nil {
		if !errors.Is(err, ErrStoreDegraded) {
			s.logger.Warn("cache flush failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return false
	}
	return true
}

// GetStats returns a statistics snapshot. Backend failures yield a
// disconnected snapshot rather than an error.
func (s *Service) GetStats(ctx context.Context) *Stats {
	store := s.currentStore()
	stats, err := store.Stats(ctx)
	if err != nil {
		s.logger.Warn("cache stats unavailable", map[string]interface{}{
			"error": err.Error(),
		})
		return &Stats{
			Connected:  false,
			Categories: map[string]int{},
			Timestamp:  time.Now().UTC(),
		}
	}
	return stats
}

// Close stops the recovery loop and releases the backend connection
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.recoveryCancel
	store := s.store
	s.store = NewNoOpCache()
	s.connected = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return store.Close()
}
