package cache

import (
	"context"
	"path"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/observability"
)

// MultiLevel layers a small in-process LRU in front of a remote store.
// Reads check the local layer first; remote hits and successful writes
// populate it. The local TTL bounds staleness against writers in other
// processes. Hits served locally do not reach the backend and therefore do
// not appear in its keyspace counters.
type MultiLevel struct {
	local  *expirable.LRU[string, []byte]
	remote Cache
	logger observability.Logger
}

// NewMultiLevel wraps remote with an in-process layer holding up to size
// entries for at most localTTL
func NewMultiLevel(remote Cache, size int, localTTL time.Duration, logger observability.Logger) *MultiLevel {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	if localTTL <= 0 {
		localTTL = time.Minute
	}
	return &MultiLevel{
		local:  expirable.NewLRU[string, []byte](size, nil, localTTL),
		remote: remote,
		logger: logger.WithPrefix("multilevel-cache"),
	}
}

// Get checks the local layer, then the remote store
func (m *MultiLevel) Get(ctx context.Context, key string) ([]byte, error) {
	if val, ok := m.local.Get(key); ok {
		return val, nil
	}
	val, err := m.remote.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	m.local.Add(key, val)
	return val, nil
}

// Set writes through to the remote store and populates the local layer on
// success
func (m *MultiLevel) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := m.remote.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	m.local.Add(key, value)
	return nil
}

// DeleteByPattern invalidates matching local entries, then the remote store
func (m *MultiLevel) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	for _, key := range m.local.Keys() {
		matched, err := path.Match(pattern, key)
		if err != nil {
			// Malformed pattern for the local matcher; the remote store has
			// its own glob semantics, so drop the whole local layer instead.
			m.local.Purge()
			break
		}
		if matched {
			m.local.Remove(key)
		}
	}
	return m.remote.DeleteByPattern(ctx, pattern)
}

// Flush drops the local layer and wipes the remote store
func (m *MultiLevel) Flush(ctx context.Context) error {
	m.local.Purge()
	return m.remote.Flush(ctx)
}

// Stats reports the remote snapshot plus the local entry count
func (m *MultiLevel) Stats(ctx context.Context) (*Stats, error) {
	stats, err := m.remote.Stats(ctx)
	if err != nil {
		return nil, err
	}
	stats.LocalEntries = m.local.Len()
	return stats, nil
}

// Close releases the remote connection; the local layer needs no teardown
func (m *MultiLevel) Close() error {
	m.local.Purge()
	return m.remote.Close()
}
