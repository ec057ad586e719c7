// Package api exposes the cache service HTTP endpoints
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/markwoitaszek/llm-multimodal-stack-sub004/internal/search"
	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/cache"
	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/embedding"
	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/observability"
)

// Options configures the API server
type Options struct {
	// Model is the embedding model name used in cache keys
	Model string

	// EmbeddingTTL applies to embedding entries written through to the store
	EmbeddingTTL time.Duration

	// SearchTTL applies to cached search results
	SearchTTL time.Duration

	// MetricsEnabled mounts the Prometheus endpoint
	MetricsEnabled bool
}

// Server wires the cache service, the memoized embedder, and the upstream
// search client into HTTP handlers. All collaborators are injected; the
// server owns no lifecycle.
type Server struct {
	cache    *cache.Service
	memo     *embedding.MemoCache
	searcher search.Searcher
	logger   observability.Logger
	opts     Options
	router   *gin.Engine
}

// NewServer creates the API server. searcher may be nil when no upstream
// search engine is configured; the search endpoint then reports 503.
func NewServer(
	cacheSvc *cache.Service,
	memo *embedding.MemoCache,
	searcher search.Searcher,
	logger observability.Logger,
	opts Options,
) *Server {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	if opts.EmbeddingTTL <= 0 {
		opts.EmbeddingTTL = 24 * time.Hour
	}
	if opts.SearchTTL <= 0 {
		opts.SearchTTL = 15 * time.Minute
	}

	s := &Server{
		cache:    cacheSvc,
		memo:     memo,
		searcher: searcher,
		logger:   logger.WithPrefix("api"),
		opts:     opts,
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the configured gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestID())
	router.Use(s.requestLogger())

	router.GET("/health", s.handleHealth)
	if s.opts.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/cache/stats", s.handleStats)
		v1.POST("/cache/invalidate", s.handleInvalidate)
		v1.DELETE("/cache", s.handleFlush)
		v1.POST("/embeddings", s.handleEmbeddings)
		v1.POST("/search", s.handleSearch)
	}

	return router
}

// requestID attaches a request ID to each request and response
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// requestLogger logs each request with latency and status
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request handled", map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetString("request_id"),
		})
	}
}
