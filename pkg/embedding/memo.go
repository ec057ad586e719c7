package embedding

import (
	"container/list"
	"context"
	"sync"

	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/observability"
)

// DefaultMemoCapacity is used when a MemoCache is created with a
// non-positive capacity
const DefaultMemoCapacity = 1000

// MemoCache wraps an Embedder with exact-text memoization. Entries have no
// TTL; when the table is full, inserting a new entry evicts exactly one,
// chosen by oldest insertion order. Eviction is FIFO, not LRU: a
// recently-read but old entry is not protected. Re-computing an evicted
// entry costs latency, never correctness.
//
// MemoCache is safe for concurrent use.
type MemoCache struct {
	embedder Embedder
	capacity int
	logger   observability.Logger
	metrics  observability.MetricsClient

	mu      sync.Mutex
	table   map[string][]float32
	order   *list.List // insertion order, oldest at front; values are texts
	element map[string]*list.Element
}

// NewMemoCache creates a memoizing wrapper around embedder holding at most
// capacity entries
func NewMemoCache(embedder Embedder, capacity int, logger observability.Logger, metrics observability.MetricsClient) *MemoCache {
	if capacity <= 0 {
		capacity = DefaultMemoCapacity
	}
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	return &MemoCache{
		embedder: embedder,
		capacity: capacity,
		logger:   logger.WithPrefix("embedding-memo"),
		metrics:  metrics,
		table:    make(map[string][]float32, capacity),
		order:    list.New(),
		element:  make(map[string]*list.Element, capacity),
	}
}

// Embed returns the embedding for text, invoking the wrapped embedder only
// on a miss
func (m *MemoCache) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	vec, ok := m.table[text]
	m.mu.Unlock()
	if ok {
		return vec, nil
	}

	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.insert(text, vec)
	m.mu.Unlock()
	return vec, nil
}

// EmbedBatch returns one embedding per input text, in the original order.
// Cached texts are served from the table; the wrapped batch call is issued
// only for the uncached subset, and each newly computed entry is inserted
// under the same eviction rule.
func (m *MemoCache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	m.mu.Lock()
	for i, text := range texts {
		if vec, ok := m.table[text]; ok {
			vectors[i] = vec
		} else {
			missing = append(missing, text)
			missingIdx = append(missingIdx, i)
		}
	}
	m.mu.Unlock()

	if len(missing) == 0 {
		return vectors, nil
	}

	computed, err := m.embedder.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(computed) != len(missing) {
		m.logger.Error("embedder returned wrong batch size", map[string]interface{}{
			"requested": len(missing),
			"returned":  len(computed),
		})
		return nil, errBatchSizeMismatch
	}

	m.mu.Lock()
	for i, vec := range computed {
		vectors[missingIdx[i]] = vec
		m.insert(missing[i], vec)
	}
	m.mu.Unlock()
	return vectors, nil
}

// Clear empties the table immediately
func (m *MemoCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table = make(map[string][]float32, m.capacity)
	m.order.Init()
	m.element = make(map[string]*list.Element, m.capacity)
}

// Len returns the current number of memoized entries
func (m *MemoCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.table)
}

// insert adds an entry, evicting the oldest-inserted one when at capacity.
// Caller must hold m.mu. A concurrent miss on the same text may have
// inserted already; overwriting keeps the original insertion position.
func (m *MemoCache) insert(text string, vec []float32) {
	if _, exists := m.table[text]; exists {
		m.table[text] = vec
		return
	}
	if len(m.table) >= m.capacity {
		oldest := m.order.Front()
		if oldest != nil {
			victim := oldest.Value.(string)
			m.order.Remove(oldest)
			delete(m.table, victim)
			delete(m.element, victim)
			m.metrics.RecordEvictions(1)
		}
	}
	m.table[text] = vec
	m.element[text] = m.order.PushBack(text)
}
