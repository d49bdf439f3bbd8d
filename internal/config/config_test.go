package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ragit/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Collection.Name != "ragit_documents" {
		t.Fatalf("unexpected default collection: %s", cfg.Collection.Name)
	}
	if cfg.DocumentProcessing.ChunkSize != 1000 || cfg.DocumentProcessing.ChunkOverlap != 200 {
		t.Fatalf("unexpected default chunking: %+v", cfg.DocumentProcessing)
	}
	if cfg.Retrieval.K != 4 {
		t.Fatalf("unexpected default k: %d", cfg.Retrieval.K)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
document_processing:
  chunk_size: 500
retrieval:
  k: 10
queries:
  - "What is RAG?"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DocumentProcessing.ChunkSize != 500 {
		t.Fatalf("chunk_size not taken from file: %d", cfg.DocumentProcessing.ChunkSize)
	}
	// Keys absent from the file keep their defaults.
	if cfg.DocumentProcessing.ChunkOverlap != 200 {
		t.Fatalf("chunk_overlap default lost: %d", cfg.DocumentProcessing.ChunkOverlap)
	}
	if len(cfg.Queries) != 1 || cfg.Queries[0] != "What is RAG?" {
		t.Fatalf("queries not parsed: %v", cfg.Queries)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "retrieval:\n  k: 10\n")
	t.Setenv("RAGIT_RETRIEVAL_K", "7")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retrieval.K != 7 {
		t.Fatalf("env override not applied: %d", cfg.Retrieval.K)
	}
}

func TestLoad_SecretsFromEnvOnly(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("QDRANT_API_KEY", "qd-test")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Fatalf("OPENAI_API_KEY not picked up")
	}
	if cfg.Qdrant.APIKey != "qd-test" {
		t.Fatalf("QDRANT_API_KEY not picked up")
	}
}

func TestApplyOverrides_WinsOverEnv(t *testing.T) {
	t.Setenv("RAGIT_MODEL_LLM_MODEL", "gpt-4o")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.ApplyOverrides([]string{"model.llm_model=gpt-4o-mini", "document_processing.chunk_size=256"}); err != nil {
		t.Fatal(err)
	}
	if cfg.Model.LLMModel != "gpt-4o-mini" {
		t.Fatalf("CLI override lost to env: %s", cfg.Model.LLMModel)
	}
	if cfg.DocumentProcessing.ChunkSize != 256 {
		t.Fatalf("CLI int override not applied: %d", cfg.DocumentProcessing.ChunkSize)
	}
}

func TestApplyOverrides_Rejections(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	for _, bad := range []string{"no-equals-sign", "unknown.key=1", "retrieval.k=abc"} {
		if err := cfg.ApplyOverrides([]string{bad}); !errors.Is(err, domain.ErrInvalidConfig) {
			t.Fatalf("override %q: expected ErrInvalidConfig, got %v", bad, err)
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*AppConfig)
		wantFail bool
	}{
		{"defaults are valid", func(c *AppConfig) {}, false},
		{"overlap equals size", func(c *AppConfig) { c.DocumentProcessing.ChunkOverlap = c.DocumentProcessing.ChunkSize }, true},
		{"overlap exceeds size", func(c *AppConfig) { c.DocumentProcessing.ChunkOverlap = 2000 }, true},
		{"zero chunk size", func(c *AppConfig) { c.DocumentProcessing.ChunkSize = 0 }, true},
		{"zero k", func(c *AppConfig) { c.Retrieval.K = 0 }, true},
		{"zero batch size", func(c *AppConfig) { c.Ingestion.BatchSize = 0 }, true},
		{"zero concurrency", func(c *AppConfig) { c.Ingestion.Concurrency = 0 }, true},
		{"negative retries", func(c *AppConfig) { c.Ingestion.MaxRetries = -1 }, true},
		{"empty qdrant url", func(c *AppConfig) { c.Qdrant.URL = "" }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantFail && !errors.Is(err, domain.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !tc.wantFail && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
