package cache

import (
	"context"
	"time"
)

// NoOpCache is the degraded-mode store. It implements the same Cache
// interface as the Redis store so callers never branch on connectivity:
// every read is a miss and every write reports ErrStoreDegraded, which the
// service layer translates to a false/0 result without failing the request.
type NoOpCache struct{}

// NewNoOpCache creates the degraded-mode store
func NewNoOpCache() Cache {
	return &NoOpCache{}
}

// Get always reports a miss
func (n *NoOpCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, ErrCacheMiss
}

// Set reports the write was not stored
func (n *NoOpCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return ErrStoreDegraded
}

// DeleteByPattern removes nothing
func (n *NoOpCache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	return 0, nil
}

// Flush reports the wipe was not performed
func (n *NoOpCache) Flush(ctx context.Context) error {
	return ErrStoreDegraded
}

// Stats reports a disconnected snapshot
func (n *NoOpCache) Stats(ctx context.Context) (*Stats, error) {
	return &Stats{
		Connected:  false,
		Categories: map[string]int{},
		Timestamp:  time.Now().UTC(),
	}, nil
}

// Close does nothing
func (n *NoOpCache) Close() error {
	return nil
}
