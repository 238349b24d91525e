package testsupport

import (
	"path/filepath"
	"testing"

	"dossier/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.LockDir = filepath.Join(base, "locks")

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

// WithLLM points the config at a test LLM endpoint.
func WithLLM(baseURL, apiKey string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.LLM.BaseURL = baseURL
		cfg.LLM.APIKey = apiKey
	}
}
