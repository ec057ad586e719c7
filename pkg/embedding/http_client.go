package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPEmbedderConfig configures the client for an external embedding server
type HTTPEmbedderConfig struct {
	// Endpoint is the base URL of the embedding server
	Endpoint string `mapstructure:"endpoint"`

	// Model is the model name sent with every request
	Model string `mapstructure:"model"`

	// Timeout bounds each request
	Timeout time.Duration `mapstructure:"timeout"`
}

// HTTPEmbedder calls an external model server over HTTP. The server exposes
// POST {endpoint}/embed and POST {endpoint}/embed/batch.
type HTTPEmbedder struct {
	config HTTPEmbedderConfig
	client *http.Client
}

type embedRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type embedBatchRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

type embedBatchResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// NewHTTPEmbedder creates a client for an external embedding server
func NewHTTPEmbedder(config HTTPEmbedderConfig) *HTTPEmbedder {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &HTTPEmbedder{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Embed requests the embedding for a single text
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	err := e.post(ctx, "/embed", embedRequest{Text: text, Model: e.config.Model}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Vector, nil
}

// EmbedBatch requests embeddings for multiple texts in one call
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embedBatchResponse
	err := e.post(ctx, "/embed/batch", embedBatchRequest{Texts: texts, Model: e.config.Model}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Vectors) != len(texts) {
		return nil, errBatchSizeMismatch
	}
	return resp.Vectors, nil
}

func (e *HTTPEmbedder) post(ctx context.Context, path string, body, dest interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("embedding server returned %d: %s", resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode embedding response: %w", err)
	}
	return nil
}
