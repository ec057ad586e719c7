package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/observability"
)

func serviceConfig(addr string) Config {
	cfg := DefaultConfig()
	cfg.Redis.Address = addr
	cfg.Redis.DialTimeout = 500 * time.Millisecond
	cfg.RecoveryInitialInterval = 50 * time.Millisecond
	cfg.RecoveryMaxInterval = 100 * time.Millisecond
	return cfg
}

func setupService(t *testing.T) (*miniredis.Miniredis, *Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	svc := NewService(serviceConfig(mr.Addr()), observability.NewNoopLogger(), nil)
	require.NoError(t, svc.Initialize(context.Background()))
	t.Cleanup(func() { _ = svc.Close() })
	return mr, svc
}

func TestServiceRoundTrip(t *testing.T) {
	_, svc := setupService(t)
	ctx := context.Background()

	assert.Equal(t, ModeConnected, svc.Mode())

	ok := svc.SetCached(ctx, "search:k", []byte("value"), time.Minute)
	assert.True(t, ok)

	val, found := svc.GetCached(ctx, "search:k")
	assert.True(t, found)
	assert.Equal(t, []byte("value"), val)

	_, found = svc.GetCached(ctx, "search:other")
	assert.False(t, found)
}

func TestServiceJSONRoundTrip(t *testing.T) {
	_, svc := setupService(t)
	ctx := context.Background()

	type result struct {
		IDs   []int  `json:"ids"`
		Query string `json:"query"`
	}

	stored, err := svc.SetCachedJSON(ctx, "search:json", result{IDs: []int{1, 2}, Query: "cats"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	var got result
	assert.True(t, svc.GetCachedJSON(ctx, "search:json", &got))
	assert.Equal(t, "cats", got.Query)
	assert.Equal(t, []int{1, 2}, got.IDs)
}

func TestServiceEntryEnvelope(t *testing.T) {
	_, svc := setupService(t)
	ctx := context.Background()

	key := ContentKey(CategoryProcessing, "caption", "filehash123")
	stored, err := svc.SetEntry(ctx, key, map[string]interface{}{"caption": "a cat"}, "caption", "filehash123", time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	entry, found := svc.GetEntry(ctx, key)
	require.True(t, found)
	assert.Equal(t, "caption", entry.Operation)
	assert.Equal(t, "filehash123", entry.Owner)
	assert.False(t, entry.CachedAt.IsZero())

	var payload map[string]interface{}
	require.NoError(t, entry.Decode(&payload))
	assert.Equal(t, "a cat", payload["caption"])
}

func TestServiceSerializationErrorPropagates(t *testing.T) {
	_, svc := setupService(t)

	_, err := svc.SetCachedJSON(context.Background(), "search:bad", make(chan int), time.Minute)
	assert.Error(t, err)
}

func TestServiceInvalidate(t *testing.T) {
	_, svc := setupService(t)
	ctx := context.Background()

	svc.SetCached(ctx, "embedding:clip:file1", []byte("v"), time.Minute)
	svc.SetCached(ctx, "embedding:bert:file1", []byte("v"), time.Minute)
	svc.SetCached(ctx, "embedding:clip:file2", []byte("v"), time.Minute)

	deleted := svc.Invalidate(ctx, "embedding:*:file1")
	assert.Equal(t, 2, deleted)

	_, found := svc.GetCached(ctx, "embedding:clip:file2")
	assert.True(t, found)
}

func TestServiceDegradedMode(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// Reserve an address, then shut the server down so nothing is listening
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	svc := NewService(serviceConfig(addr), observability.NewNoopLogger(), nil)
	require.NoError(t, svc.Initialize(context.Background()), "degraded start must not fail initialization")

	ctx := context.Background()
	assert.Equal(t, ModeDegraded, svc.Mode())

	_, found := svc.GetCached(ctx, "search:anything")
	assert.False(t, found)

	assert.False(t, svc.SetCached(ctx, "search:anything", []byte("v"), time.Minute))
	assert.Equal(t, 0, svc.Invalidate(ctx, "search:*"))
	assert.False(t, svc.Flush(ctx))

	stats := svc.GetStats(ctx)
	assert.False(t, stats.Connected)
	assert.Equal(t, float64(0), stats.HitRate)

	require.NoError(t, svc.Close())
}

func TestServiceRecoversWhenBackendReturns(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	svc := NewService(serviceConfig(addr), observability.NewNoopLogger(), nil)
	require.NoError(t, svc.Initialize(context.Background()))
	t.Cleanup(func() { _ = svc.Close() })

	assert.Equal(t, ModeDegraded, svc.Mode())

	// Bring the backend up on the same address; the recovery loop should
	// swap the store back to connected
	mr2 := miniredis.NewMiniRedis()
	require.NoError(t, mr2.StartAddr(addr))
	t.Cleanup(mr2.Close)

	require.Eventually(t, func() bool {
		return svc.Mode() == ModeConnected
	}, 5*time.Second, 50*time.Millisecond)

	ctx := context.Background()
	assert.True(t, svc.SetCached(ctx, "search:recovered", []byte("v"), time.Minute))
	_, found := svc.GetCached(ctx, "search:recovered")
	assert.True(t, found)
}

func TestServiceAdoptAfterClose(t *testing.T) {
	mr := miniredis.RunT(t)
	svc := NewService(serviceConfig(mr.Addr()), observability.NewNoopLogger(), nil)
	require.NoError(t, svc.Initialize(context.Background()))
	require.NoError(t, svc.Close())

	// A recovery ping can succeed concurrently with Close and hand over a
	// client late; it must be released, not adopted
	client := NewRedisClient(RedisConfig{Address: mr.Addr()})
	svc.adopt(client)

	assert.Equal(t, ModeDegraded, svc.Mode())
	assert.Error(t, client.Ping(context.Background()).Err(), "late client must be closed")

	_, found := svc.GetCached(context.Background(), "search:k")
	assert.False(t, found)
}

func TestServiceStats(t *testing.T) {
	_, svc := setupService(t)
	ctx := context.Background()

	svc.SetCached(ctx, "embedding:clip:h1", []byte("v"), time.Minute)
	svc.SetCached(ctx, "search:q1", []byte("v"), time.Minute)

	stats := svc.GetStats(ctx)
	assert.True(t, stats.Connected)
	assert.Equal(t, 1, stats.Categories[CategoryEmbedding])
	assert.Equal(t, 1, stats.Categories[CategorySearch])
}

func TestServiceStatsDuringOutage(t *testing.T) {
	mr, svc := setupService(t)
	ctx := context.Background()

	stats := svc.GetStats(ctx)
	require.True(t, stats.Connected)

	// A runtime outage must not be reported as a connected snapshot with
	// zeroed counters
	mr.Close()

	stats = svc.GetStats(ctx)
	assert.False(t, stats.Connected)
}

func TestHitRate(t *testing.T) {
	assert.Equal(t, 85.0, HitRate(85, 15))
	assert.Equal(t, 0.0, HitRate(0, 0))
	assert.Equal(t, 100.0, HitRate(10, 0))
	assert.Equal(t, 0.0, HitRate(0, 10))
}

func TestServiceFlush(t *testing.T) {
	_, svc := setupService(t)
	ctx := context.Background()

	svc.SetCached(ctx, "search:a", []byte("v"), time.Minute)
	assert.True(t, svc.Flush(ctx))

	_, found := svc.GetCached(ctx, "search:a")
	assert.False(t, found)
}

func TestServiceDeriveKey(t *testing.T) {
	_, svc := setupService(t)

	k1, err := svc.DeriveKey("search", map[string]interface{}{"query": "cats", "limit": 10})
	require.NoError(t, err)
	k2, err := svc.DeriveKey("search", map[string]interface{}{"limit": 10, "query": "cats"})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}
