package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-haiku-20241022", cfg.Provider.Model)
	assert.Equal(t, 8, cfg.Scheduler.MaxWorkers)
	assert.Equal(t, 0.3, cfg.Clustering.Eps)
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
provider:
  model: claude-sonnet-4-20250514
scheduler:
  max_workers: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Provider.Model)
	assert.Equal(t, 4, cfg.Scheduler.MaxWorkers)
	// Unset fields keep their defaults.
	assert.Equal(t, 16000, cfg.Scheduler.TokenCeiling)
	assert.Equal(t, 64, cfg.Embedding.BatchSize)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.RequestTimeout)
	assert.Equal(t, ".coder/coder.db", cfg.Storage.Path)
}

func TestLoadOllamaBackend(t *testing.T) {
	path := writeConfig(t, `
embedding:
  backend: ollama
  base_url: http://localhost:11434
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "embedding:\n  backend: cohere\n"},
		{"ollama without base_url", "embedding:\n  backend: ollama\n"},
		{"eps out of range", "clustering:\n  eps: 2.5\n"},
		{"too many workers", "scheduler:\n  max_workers: 200\n"},
		{"batch size out of range", "embedding:\n  batch_size: 5000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesFileKeys(t *testing.T) {
	path := writeConfig(t, `
provider:
  api_key: file-anthropic-key
embedding:
  api_key: file-openai-key
`)
	t.Setenv(EnvAnthropicAPIKey, "env-anthropic-key")
	t.Setenv(EnvOpenAIAPIKey, "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-anthropic-key", cfg.Provider.APIKey)
	assert.Equal(t, "file-openai-key", cfg.Embedding.APIKey, "empty env var does not clobber the file value")
}

func TestToSchedulerCarriesRetrySettings(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.MaxRetries = 5
	cfg.Scheduler.RequestTimeout = 30 * time.Second

	sched := cfg.Scheduler.ToScheduler()
	assert.Equal(t, 5, sched.Retry.MaxRetries)
	assert.Equal(t, 30*time.Second, sched.Retry.Timeout)
	require.NoError(t, sched.Validate())
}
