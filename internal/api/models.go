package api

import "github.com/markwoitaszek/llm-multimodal-stack-sub004/internal/search"

// InvalidateRequest asks for pattern-based cache invalidation
type InvalidateRequest struct {
	Pattern string `json:"pattern" binding:"required"`
}

// InvalidateResponse reports how many keys were removed
type InvalidateResponse struct {
	Pattern string `json:"pattern"`
	Deleted int    `json:"deleted"`
}

// FlushResponse reports whether the administrative wipe was performed
type FlushResponse struct {
	Flushed bool `json:"flushed"`
}

// EmbedRequest asks for embeddings. Exactly one of Text or Texts must be set.
type EmbedRequest struct {
	Text  string   `json:"text,omitempty"`
	Texts []string `json:"texts,omitempty"`
}

// EmbedResponse returns embeddings for a single text
type EmbedResponse struct {
	Model      string    `json:"model"`
	Vector     []float32 `json:"vector"`
	Dimensions int       `json:"dimensions"`
}

// EmbedBatchResponse returns embeddings for multiple texts, in input order
type EmbedBatchResponse struct {
	Model   string      `json:"model"`
	Vectors [][]float32 `json:"vectors"`
}

// SearchRequest asks for a cached search
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit,omitempty"`
}

// SearchResponse returns search results and whether they came from cache
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
	Cached  bool            `json:"cached"`
}

// HealthResponse reports service and cache status
type HealthResponse struct {
	Status    string `json:"status"`
	CacheMode string `json:"cache_mode"`
}

// ErrorResponse carries an error message
type ErrorResponse struct {
	Error string `json:"error"`
}
