// Package embedding defines the embedding-generation interface consumed by
// the caching core and the in-process memoization layer wrapped around it.
package embedding

import "context"

// Embedder generates vector embeddings for text. Implementations are
// expected to be slow (a model-serving call) and idempotent for a given
// input, which is what makes memoization safe.
type Embedder interface {
	// Embed returns the embedding vector for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one embedding vector per input text, in order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFunc adapts a function to the Embedder interface. Batch calls
// iterate the single-text function.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

// Embed calls the wrapped function
func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// EmbedBatch calls the wrapped function once per text
func (f EmbedderFunc) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}
