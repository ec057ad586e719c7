// Package main is the entry point for the cache service
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/markwoitaszek/llm-multimodal-stack-sub004/internal/api"
	"github.com/markwoitaszek/llm-multimodal-stack-sub004/internal/config"
	"github.com/markwoitaszek/llm-multimodal-stack-sub004/internal/search"
	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/cache"
	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/embedding"
	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/observability"
)

var (
	// Version information (set via ldflags during build)
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Cache Service\nVersion: %s\nBuild Time: %s\nGit Commit: %s\n",
			version, buildTime, gitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewStandardLoggerWithLevel("cache-service", observability.LogLevel(cfg.Service.LogLevel))
	logger.Info("starting cache service", map[string]interface{}{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
		"port":       cfg.Service.Port,
	})

	var metrics observability.MetricsClient
	if cfg.Service.MetricsEnabled {
		metrics = observability.NewPrometheusMetricsClient("multimodal")
	} else {
		metrics = observability.NewNoopMetricsClient()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The cache service is constructed here and handed to the API layer;
	// a failed backend probe starts it degraded rather than aborting.
	cacheSvc := cache.NewService(cfg.Cache, logger, metrics)
	if err := cacheSvc.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize cache service: %v", err)
	}

	embedder := embedding.NewHTTPEmbedder(cfg.Embedding.Client)
	memo := embedding.NewMemoCache(embedder, cfg.Embedding.MemoCapacity, logger, metrics)

	var searcher search.Searcher
	if cfg.Search.Endpoint != "" {
		searcher = search.NewClient(cfg.Search.Endpoint, cfg.Search.Timeout)
	} else {
		logger.Warn("no search engine endpoint configured, search endpoint disabled", nil)
	}

	server := api.NewServer(cacheSvc, memo, searcher, logger, api.Options{
		Model:          cfg.Embedding.Client.Model,
		EmbeddingTTL:   cfg.Embedding.TTL,
		SearchTTL:      cfg.Search.TTL,
		MetricsEnabled: cfg.Service.MetricsEnabled,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.Port),
		Handler: server.Router(),
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", map[string]interface{}{"error": err.Error()})
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if err := cacheSvc.Close(); err != nil {
		logger.Error("cache service close failed", map[string]interface{}{"error": err.Error()})
	}
	logger.Info("cache service stopped", nil)
}
