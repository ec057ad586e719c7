package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/markwoitaszek/llm-multimodal-stack-sub004/internal/search"
	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/cache"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		CacheMode: s.cache.Mode(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.cache.GetStats(c.Request.Context()))
}

func (s *Server) handleInvalidate(c *gin.Context) {
	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	deleted := s.cache.Invalidate(c.Request.Context(), req.Pattern)
	c.JSON(http.StatusOK, InvalidateResponse{Pattern: req.Pattern, Deleted: deleted})
}

func (s *Server) handleFlush(c *gin.Context) {
	c.JSON(http.StatusOK, FlushResponse{Flushed: s.cache.Flush(c.Request.Context())})
}

func (s *Server) handleEmbeddings(c *gin.Context) {
	var req EmbedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	switch {
	case req.Text != "" && len(req.Texts) == 0:
		s.embedSingle(c, req.Text)
	case req.Text == "" && len(req.Texts) > 0:
		s.embedBatch(c, req.Texts)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "exactly one of text or texts must be provided"})
	}
}

func (s *Server) embedSingle(c *gin.Context, text string) {
	ctx := c.Request.Context()

	vector, err := s.memo.Embed(ctx, text)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}

	// Write through to the shared store so other services can reuse the
	// embedding by content hash. Best effort; failure degrades silently.
	key := cache.ContentKey(cache.CategoryEmbedding, s.opts.Model, cache.HashText(text))
	_, _ = s.cache.SetEntry(ctx, key, vector, "embed", cache.HashText(text), s.opts.EmbeddingTTL)

	c.JSON(http.StatusOK, EmbedResponse{
		Model:      s.opts.Model,
		Vector:     vector,
		Dimensions: len(vector),
	})
}

func (s *Server) embedBatch(c *gin.Context, texts []string) {
	ctx := c.Request.Context()

	vectors, err := s.memo.EmbedBatch(ctx, texts)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}

	for i, text := range texts {
		key := cache.ContentKey(cache.CategoryEmbedding, s.opts.Model, cache.HashText(text))
		_, _ = s.cache.SetEntry(ctx, key, vectors[i], "embed", cache.HashText(text), s.opts.EmbeddingTTL)
	}

	c.JSON(http.StatusOK, EmbedBatchResponse{Model: s.opts.Model, Vectors: vectors})
}

func (s *Server) handleSearch(c *gin.Context) {
	if s.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no search engine configured"})
		return
	}

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	ctx := c.Request.Context()
	key, err := s.cache.DeriveKey(cache.CategorySearch, map[string]interface{}{
		"query": req.Query,
		"limit": req.Limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	var results []search.Result
	if s.cache.GetCachedJSON(ctx, key, &results) {
		c.JSON(http.StatusOK, SearchResponse{Query: req.Query, Results: results, Cached: true})
		return
	}

	results, err = s.searcher.Search(ctx, req.Query, req.Limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}

	_, _ = s.cache.SetCachedJSON(ctx, key, results, s.opts.SearchTTL)
	c.JSON(http.StatusOK, SearchResponse{Query: req.Query, Results: results, Cached: false})
}
