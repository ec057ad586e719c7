// Package cache implements the shared content-addressed caching core used by
// the services in this repository: deterministic key derivation, a TTL
// key-value store over Redis with pattern invalidation, a degraded-mode
// no-op store, and cache statistics reporting.
//
// The store is always an optimization, never a correctness dependency: when
// the backend is unreachable every read behaves as a miss and every write as
// a logged failure, and callers keep working against the expensive path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrCacheMiss is returned by Get when a key is not present
	ErrCacheMiss = errors.New("cache miss")

	// ErrStoreDegraded is returned by write operations while the store is
	// running without a reachable backend
	ErrStoreDegraded = errors.New("cache store degraded")
)

// Cache defines the TTL key-value store operations. Both the Redis-backed
// store and the degraded-mode no-op store implement it, so callers never
// branch on connectivity themselves.
type Cache interface {
	// Get returns the raw value stored under key, or ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL (0 means the store default)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// DeleteByPattern removes every key matching a Redis-style glob pattern
	// and returns the number of keys removed
	DeleteByPattern(ctx context.Context, pattern string) (int, error)

	// Flush removes every key in the store's database. Administrative reset only.
	Flush(ctx context.Context) error

	// Stats returns a point-in-time statistics snapshot
	Stats(ctx context.Context) (*Stats, error)

	// Close releases the backend connection
	Close() error
}

// Entry is the envelope stored for structured cache values. The payload is
// kept as raw JSON so readers can defer decoding.
type Entry struct {
	Payload   json.RawMessage `json:"payload"`
	CachedAt  time.Time       `json:"cached_at"`
	Operation string          `json:"operation,omitempty"`
	Owner     string          `json:"owner,omitempty"`
}

// NewEntry wraps a payload in an Entry envelope. Returns an error if the
// payload cannot be serialized, which is a caller contract violation.
func NewEntry(payload interface{}, operation, owner string) (*Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Entry{
		Payload:   raw,
		CachedAt:  time.Now().UTC(),
		Operation: operation,
		Owner:     owner,
	}, nil
}

// Decode unmarshals the entry payload into dest
func (e *Entry) Decode(dest interface{}) error {
	return json.Unmarshal(e.Payload, dest)
}
