package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dossier/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatalf("expected missing file, resolved %s", resolved)
	}
	if cfg.Matching.BatchSize != 40 {
		t.Fatalf("expected default batch size, got %d", cfg.Matching.BatchSize)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("expected console log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"

[matching]
batch_size = 10
extra_title_prefixes = [" Özv. ", ""]

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Matching.BatchSize != 10 {
		t.Fatalf("expected batch size 10, got %d", cfg.Matching.BatchSize)
	}
	if len(cfg.Matching.ExtraTitlePrefixes) != 1 || cfg.Matching.ExtraTitlePrefixes[0] != "Özv." {
		t.Fatalf("unexpected prefixes: %#v", cfg.Matching.ExtraTitlePrefixes)
	}
	if !strings.HasSuffix(cfg.DatabasePath(), "archive.db") {
		t.Fatalf("unexpected database path: %s", cfg.DatabasePath())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		keyword string
	}{
		{"batch size", func(c *config.Config) { c.Matching.BatchSize = 1 }, "batch_size"},
		{"log format", func(c *config.Config) { c.Logging.Format = "yaml" }, "logging.format"},
		{"log level", func(c *config.Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.keyword) {
				t.Fatalf("error %q does not mention %q", err, tc.keyword)
			}
		})
	}
}
