// Package config handles configuration for the cache service
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/cache"
	"github.com/markwoitaszek/llm-multimodal-stack-sub004/pkg/embedding"
)

// Config represents the complete configuration for the cache service
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Cache     cache.Config    `mapstructure:"cache"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Search    SearchConfig    `mapstructure:"search"`
}

// ServiceConfig contains service-level configuration
type ServiceConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
}

// EmbeddingConfig contains embedding client and memoization settings
type EmbeddingConfig struct {
	Client       embedding.HTTPEmbedderConfig `mapstructure:"client"`
	MemoCapacity int                          `mapstructure:"memo_capacity"`

	// TTL applies to embedding entries written through to the shared store
	TTL time.Duration `mapstructure:"ttl"`
}

// SearchConfig contains the upstream search engine settings
type SearchConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// TTL applies to cached search results
	TTL time.Duration `mapstructure:"ttl"`
}

// Load reads configuration from config.yaml (working directory or ./configs),
// a local .env file, and CACHE_* environment variables, in increasing
// precedence.
func Load() (*Config, error) {
	// A missing .env file is fine; it only exists in local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix("CACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid service port: %d", c.Service.Port)
	}
	if c.Cache.Redis.Address == "" {
		return fmt.Errorf("cache redis address is required")
	}
	if c.Embedding.MemoCapacity < 0 {
		return fmt.Errorf("embedding memo capacity must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.port", 8080)
	v.SetDefault("service.shutdown_timeout", 10*time.Second)
	v.SetDefault("service.log_level", "INFO")
	v.SetDefault("service.metrics_enabled", true)

	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("cache.redis.max_retries", 3)
	v.SetDefault("cache.redis.dial_timeout", 5*time.Second)
	v.SetDefault("cache.redis.read_timeout", 3*time.Second)
	v.SetDefault("cache.redis.write_timeout", 3*time.Second)
	v.SetDefault("cache.redis.pool_size", 10)
	v.SetDefault("cache.redis.min_idle_conns", 2)
	v.SetDefault("cache.default_ttl", time.Hour)
	v.SetDefault("cache.categories", []string{
		cache.CategoryEmbedding, cache.CategoryProcessing, cache.CategorySearch, cache.CategoryContext,
	})
	v.SetDefault("cache.local_size", 0)
	v.SetDefault("cache.local_ttl", time.Minute)
	v.SetDefault("cache.recovery_initial_interval", time.Second)
	v.SetDefault("cache.recovery_max_interval", 30*time.Second)

	v.SetDefault("embedding.client.endpoint", "http://localhost:8081")
	v.SetDefault("embedding.client.model", "clip-vit-b32")
	v.SetDefault("embedding.client.timeout", 30*time.Second)
	v.SetDefault("embedding.memo_capacity", embedding.DefaultMemoCapacity)
	v.SetDefault("embedding.ttl", 24*time.Hour)

	v.SetDefault("search.endpoint", "")
	v.SetDefault("search.timeout", 10*time.Second)
	v.SetDefault("search.ttl", 15*time.Minute)
}
