package embedding

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/observability"
)

// countingEmbedder records how often each text is embedded
type countingEmbedder struct {
	mu    sync.Mutex
	calls map[string]int
	batch int
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{calls: map[string]int{}}
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[text]++
	return []float32{float32(len(text)), 1.0}, nil
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batch++
	e.mu.Unlock()

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, _ := e.Embed(ctx, text)
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *countingEmbedder) callCount(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[text]
}

func newMemo(embedder Embedder, capacity int) *MemoCache {
	return NewMemoCache(embedder, capacity, observability.NewNoopLogger(), nil)
}

func TestMemoSingleInvocation(t *testing.T) {
	embedder := newCountingEmbedder()
	memo := newMemo(embedder, 10)
	ctx := context.Background()

	v1, err := memo.Embed(ctx, "hello world")
	require.NoError(t, err)

	v2, err := memo.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, embedder.callCount("hello world"), "second call must be a pure cache hit")
}

func TestMemoFIFOEviction(t *testing.T) {
	embedder := newCountingEmbedder()
	memo := newMemo(embedder, 3)
	ctx := context.Background()

	for _, text := range []string{"t1", "t2", "t3"} {
		_, err := memo.Embed(ctx, text)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, memo.Len())

	// Access t1; FIFO eviction must NOT protect it
	_, err := memo.Embed(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.callCount("t1"))

	// Inserting a fourth entry evicts exactly one: the first-inserted
	_, err = memo.Embed(ctx, "t4")
	require.NoError(t, err)
	assert.Equal(t, 3, memo.Len())

	// t2 and t3 survived; reads do not mutate the table
	_, err = memo.Embed(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.callCount("t2"))
	_, err = memo.Embed(ctx, "t3")
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.callCount("t3"))

	// t1 was evicted, so it is recomputed (and re-inserting it into the
	// full table evicts the now-oldest entry, t2)
	_, err = memo.Embed(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.callCount("t1"))

	_, err = memo.Embed(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.callCount("t2"))
}

func TestMemoEmbedBatchPartition(t *testing.T) {
	embedder := newCountingEmbedder()
	memo := newMemo(embedder, 10)
	ctx := context.Background()

	// Pre-cache two of four texts
	_, err := memo.Embed(ctx, "b")
	require.NoError(t, err)
	_, err = memo.Embed(ctx, "d")
	require.NoError(t, err)

	vectors, err := memo.EmbedBatch(ctx, []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	require.Len(t, vectors, 4)

	// Original order preserved: vectors encode text length
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, []float32{1, 1}, vectors[1])

	// Only the uncached subset was computed, in one batch call
	assert.Equal(t, 1, embedder.callCount("a"))
	assert.Equal(t, 1, embedder.callCount("b"))
	assert.Equal(t, 1, embedder.callCount("c"))
	assert.Equal(t, 1, embedder.callCount("d"))
	assert.Equal(t, 1, embedder.batch)
}

func TestMemoEmbedBatchAllCached(t *testing.T) {
	embedder := newCountingEmbedder()
	memo := newMemo(embedder, 10)
	ctx := context.Background()

	_, err := memo.EmbedBatch(ctx, []string{"x", "y"})
	require.NoError(t, err)

	_, err = memo.EmbedBatch(ctx, []string{"x", "y"})
	require.NoError(t, err)

	assert.Equal(t, 1, embedder.batch, "fully cached batch must not reach the embedder")
}

func TestMemoBatchEviction(t *testing.T) {
	embedder := newCountingEmbedder()
	memo := newMemo(embedder, 2)
	ctx := context.Background()

	// Batch inserts are subject to the same one-at-a-time eviction rule
	_, err := memo.EmbedBatch(ctx, []string{"e1", "e2", "e3"})
	require.NoError(t, err)
	assert.Equal(t, 2, memo.Len())

	// e1 was first-inserted and evicted by e3
	_, err = memo.Embed(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.callCount("e1"))
}

func TestMemoClear(t *testing.T) {
	embedder := newCountingEmbedder()
	memo := newMemo(embedder, 10)
	ctx := context.Background()

	_, err := memo.Embed(ctx, "text")
	require.NoError(t, err)
	assert.Equal(t, 1, memo.Len())

	memo.Clear()
	assert.Equal(t, 0, memo.Len())

	_, err = memo.Embed(ctx, "text")
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.callCount("text"))
}

func TestMemoEmbedderError(t *testing.T) {
	boom := fmt.Errorf("model server down")
	failing := EmbedderFunc(func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	})
	memo := newMemo(failing, 10)

	_, err := memo.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, memo.Len(), "failed computations are not cached")
}

func TestMemoConcurrentAccess(t *testing.T) {
	embedder := newCountingEmbedder()
	memo := newMemo(embedder, 50)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, err := memo.Embed(ctx, fmt.Sprintf("text-%d", j%60))
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	// Capacity invariant holds under concurrency
	assert.LessOrEqual(t, memo.Len(), 50)
}
