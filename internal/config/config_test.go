package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sqlsage/sqlsage/internal/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LLM.Model == "" {
		t.Error("Expected default model")
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("Embedding model = %q", cfg.Embedding.Model)
	}
	if cfg.Qdrant.Port != 6334 {
		t.Errorf("Qdrant port = %d, want 6334", cfg.Qdrant.Port)
	}
	if cfg.Retrieval.Strategy != StrategyCombined {
		t.Errorf("Strategy = %q, want combined", cfg.Retrieval.Strategy)
	}
	if cfg.Retrieval.TopK != 3 || cfg.Retrieval.CombinedTopK != 5 || cfg.Retrieval.RerankKeep != 3 {
		t.Errorf("Retrieval k values = %d/%d/%d, want 3/5/3",
			cfg.Retrieval.TopK, cfg.Retrieval.CombinedTopK, cfg.Retrieval.RerankKeep)
	}
	if cfg.Database.Name != "employees" || cfg.Database.Port != 3306 {
		t.Errorf("Database = %s:%d", cfg.Database.Name, cfg.Database.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config fails validation: %v", err)
	}
}

func TestLoadFromPaths_EnvOverrides(t *testing.T) {
	t.Setenv("TESTING", "true")
	t.Setenv("MODEL", "gpt-4o-mini")
	t.Setenv("EMBEDDING_MODEL", "text-embedding-3-large")
	t.Setenv("DB_USER", "sage")
	t.Setenv("DB_CRED", "secret")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFromPaths(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPaths() error = %v", err)
	}

	if !cfg.Testing {
		t.Error("TESTING=true not applied")
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want env override", cfg.LLM.Model)
	}
	if cfg.Embedding.Model != "text-embedding-3-large" {
		t.Errorf("Embedding model = %q, want env override", cfg.Embedding.Model)
	}
	if cfg.Database.User != "sage" || cfg.Database.Password != "secret" {
		t.Error("DB_USER/DB_CRED not applied")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
log_level: warn
retrieval:
  strategy: rerank
  top_k: 4
qdrant:
  host: qdrant.internal
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.Retrieval.Strategy != StrategyRerank || cfg.Retrieval.TopK != 4 {
		t.Errorf("Retrieval = %+v, want rerank with top_k 4", cfg.Retrieval)
	}
	if cfg.Qdrant.Host != "qdrant.internal" {
		t.Errorf("Qdrant host = %q", cfg.Qdrant.Host)
	}
	// Unset keys keep their defaults
	if cfg.Qdrant.Port != 6334 {
		t.Errorf("Qdrant port = %d, want default 6334", cfg.Qdrant.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load(missing) error = nil, want read error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"no model", func(c *Config) { c.LLM.Model = "" }, "llm.model"},
		{"no embedding model", func(c *Config) { c.Embedding.Model = "" }, "embedding.model"},
		{"zero timeout", func(c *Config) { c.LLM.TimeoutSeconds = 0 }, "timeout_seconds"},
		{"unknown strategy", func(c *Config) { c.Retrieval.Strategy = "hybrid" }, "strategy"},
		{"combined without collection", func(c *Config) { c.Qdrant.CombinedCollection = "" }, "combined_collection"},
		{"rerank without collections", func(c *Config) {
			c.Retrieval.Strategy = StrategyRerank
			c.Qdrant.TablesCollection = ""
		}, "tables_collection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
			var ce *types.ConfigurationError
			if err != nil && !errors.As(err, &ce) {
				t.Errorf("error = %T, want *types.ConfigurationError", err)
			}
		})
	}
}

func TestSave_ExcludesCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.User = "sage"
	cfg.Database.Password = "hunter2"

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if strings.Contains(text, "hunter2") || strings.Contains(text, "sage") {
		t.Error("saved config contains database credentials")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load(saved) error = %v", err)
	}
	if reloaded.LLM.Model != cfg.LLM.Model {
		t.Errorf("round trip changed model: %q", reloaded.LLM.Model)
	}
}
