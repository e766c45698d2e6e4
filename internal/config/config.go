// Package config loads and validates the pipeline configuration from a YAML
// file, with environment variable overrides for credentials so API keys never
// have to live on disk.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opencodebook/coder/internal/cluster"
	"github.com/opencodebook/coder/internal/scheduler"
)

// Environment variables that override file-based credentials.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
)

// Config is the root pipeline configuration.
type Config struct {
	// Provider configures the classification LLM.
	Provider ProviderConfig `yaml:"provider"`

	// Embedding configures the embedding backend.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Clustering configures pre-classification grouping of similar
	// responses.
	Clustering ClusteringConfig `yaml:"clustering"`

	// Scheduler configures batch sizing, concurrency, and retries.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Storage configures the local project database.
	Storage StorageConfig `yaml:"storage"`
}

// ProviderConfig selects and configures the classification LLM.
type ProviderConfig struct {
	// Model is the Anthropic model used for classification.
	// Default: claude-3-5-haiku-20241022
	Model string `yaml:"model"`

	// APIKey authenticates against the Anthropic API.
	// ANTHROPIC_API_KEY takes precedence when set.
	APIKey string `yaml:"api_key"`

	// MultiLabel allows more than one code per response.
	// Default: true
	MultiLabel bool `yaml:"multi_label"`

	// IncludeExplanation asks the model for a short rationale per
	// assignment. Costs output tokens.
	// Default: false
	IncludeExplanation bool `yaml:"include_explanation"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	// Backend is "openai" or "ollama".
	// Default: openai
	Backend string `yaml:"backend"`

	// Model is the embedding model name.
	// Default: text-embedding-3-small (openai), nomic-embed-text (ollama)
	Model string `yaml:"model"`

	// BaseURL overrides the backend endpoint. Required for ollama
	// (for example http://localhost:11434), optional for openai.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates the openai backend.
	// OPENAI_API_KEY takes precedence when set.
	APIKey string `yaml:"api_key"`

	// BatchSize is the number of texts embedded per request.
	// Default: 64, Range: 1-2048
	BatchSize int `yaml:"batch_size"`
}

// ClusteringConfig mirrors cluster.Config at the file level.
type ClusteringConfig struct {
	// Eps is the cosine-distance neighborhood radius.
	// Default: 0.3, Range: (0, 2)
	Eps float64 `yaml:"eps"`

	// MinSamples is the minimum neighborhood size for a core point.
	// Default: 2
	MinSamples int `yaml:"min_samples"`
}

// SchedulerConfig mirrors scheduler.Config at the file level.
type SchedulerConfig struct {
	// MaxWorkers bounds simultaneous in-flight classification calls.
	// Default: 8, Range: 1-64
	MaxWorkers int `yaml:"max_workers"`

	// TokenCeiling is the maximum estimated input-token cost per batch.
	// Default: 16000
	TokenCeiling int `yaml:"token_ceiling"`

	// MaxBatchSize is the maximum number of texts per batch regardless of
	// token cost.
	// Default: 64
	MaxBatchSize int `yaml:"max_batch_size"`

	// RequestsPerSecond rate-limits provider calls. 0 disables the limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// RequestTimeout bounds a single provider attempt.
	// Default: 2m
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig configures the local project database.
type StorageConfig struct {
	// Path is the SQLite database file.
	// Default: .coder/coder.db
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Model:      "claude-3-5-haiku-20241022",
			MultiLabel: true,
		},
		Embedding: EmbeddingConfig{
			Backend:   "openai",
			Model:     "text-embedding-3-small",
			BatchSize: 64,
		},
		Clustering: ClusteringConfig{
			Eps:        0.3,
			MinSamples: 2,
		},
		Scheduler: SchedulerConfig{
			MaxWorkers:     8,
			TokenCeiling:   16000,
			MaxBatchSize:   64,
			MaxRetries:     3,
			RequestTimeout: 2 * time.Minute,
		},
		Storage: StorageConfig{
			Path: ".coder/coder.db",
		},
	}
}

// Load reads a YAML config file, fills unset fields from Default, applies
// environment overrides, and validates the result. An empty path returns the
// validated defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.fillDefaults()
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillDefaults restores defaults for fields the file left zero. Booleans are
// not touched: an explicit false in the file must stick.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Provider.Model == "" {
		c.Provider.Model = def.Provider.Model
	}
	if c.Embedding.Backend == "" {
		c.Embedding.Backend = def.Embedding.Backend
	}
	if c.Embedding.Model == "" {
		switch c.Embedding.Backend {
		case "ollama":
			c.Embedding.Model = "nomic-embed-text"
		default:
			c.Embedding.Model = def.Embedding.Model
		}
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = def.Embedding.BatchSize
	}
	if c.Clustering.Eps == 0 {
		c.Clustering.Eps = def.Clustering.Eps
	}
	if c.Clustering.MinSamples == 0 {
		c.Clustering.MinSamples = def.Clustering.MinSamples
	}
	if c.Scheduler.MaxWorkers == 0 {
		c.Scheduler.MaxWorkers = def.Scheduler.MaxWorkers
	}
	if c.Scheduler.TokenCeiling == 0 {
		c.Scheduler.TokenCeiling = def.Scheduler.TokenCeiling
	}
	if c.Scheduler.MaxBatchSize == 0 {
		c.Scheduler.MaxBatchSize = def.Scheduler.MaxBatchSize
	}
	if c.Scheduler.MaxRetries == 0 {
		c.Scheduler.MaxRetries = def.Scheduler.MaxRetries
	}
	if c.Scheduler.RequestTimeout == 0 {
		c.Scheduler.RequestTimeout = def.Scheduler.RequestTimeout
	}
	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
}

// applyEnv overrides credentials from the environment.
func (c *Config) applyEnv() {
	if key := os.Getenv(EnvAnthropicAPIKey); key != "" {
		c.Provider.APIKey = key
	}
	if key := os.Getenv(EnvOpenAIAPIKey); key != "" {
		c.Embedding.APIKey = key
	}
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	if c.Provider.Model == "" {
		return fmt.Errorf("provider.model is required")
	}
	switch c.Embedding.Backend {
	case "openai", "ollama":
	default:
		return fmt.Errorf("embedding.backend must be openai or ollama, got %q", c.Embedding.Backend)
	}
	if c.Embedding.Backend == "ollama" && c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base_url is required for the ollama backend")
	}
	if c.Embedding.BatchSize < 1 || c.Embedding.BatchSize > 2048 {
		return fmt.Errorf("embedding.batch_size must be 1-2048, got %d", c.Embedding.BatchSize)
	}
	if err := c.Clustering.ToCluster().Validate(); err != nil {
		return fmt.Errorf("clustering: %w", err)
	}
	if err := c.Scheduler.ToScheduler().Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if c.Scheduler.MaxWorkers > 64 {
		return fmt.Errorf("scheduler.max_workers must be 1-64, got %d", c.Scheduler.MaxWorkers)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	return nil
}

// ToCluster converts the file-level clustering section to cluster.Config.
func (c ClusteringConfig) ToCluster() cluster.Config {
	return cluster.Config{Eps: c.Eps, MinSamples: c.MinSamples}
}

// ToScheduler converts the file-level scheduler section to scheduler.Config.
func (s SchedulerConfig) ToScheduler() scheduler.Config {
	cfg := scheduler.DefaultConfig()
	cfg.MaxWorkers = s.MaxWorkers
	cfg.TokenCeiling = s.TokenCeiling
	cfg.MaxBatchSize = s.MaxBatchSize
	cfg.RequestsPerSecond = s.RequestsPerSecond
	cfg.Retry.MaxRetries = s.MaxRetries
	cfg.Retry.Timeout = s.RequestTimeout
	return cfg
}
