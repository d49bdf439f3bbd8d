package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ragit/internal/domain"
)

// CollectionConfig names the vector store collection.
type CollectionConfig struct {
	Name string `yaml:"name"`
}

// DocumentProcessingConfig controls chunking.
type DocumentProcessingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// ModelConfig selects the embedding and chat models.
type ModelConfig struct {
	EmbeddingModel string  `yaml:"embedding_model"`
	LLMModel       string  `yaml:"llm_model"`
	LLMTemperature float64 `yaml:"llm_temperature"`
}

// RetrievalConfig controls similarity search.
type RetrievalConfig struct {
	K int `yaml:"k"`
}

// QdrantConfig contains connection details for the Qdrant vector store.
// The API key is sourced from the QDRANT_API_KEY environment variable only
// and is never written back to a config file.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	APIKey      string `yaml:"-"`
}

// IngestionConfig bounds the ingestion pipeline.
type IngestionConfig struct {
	DocumentsDir string `yaml:"documents_dir"`
	BatchSize    int    `yaml:"batch_size"`
	MaxRetries   int    `yaml:"max_retries"`
	Concurrency  int    `yaml:"concurrency"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// AppConfig is the root application configuration.
type AppConfig struct {
	AppName            string                   `yaml:"app_name"`
	Collection         CollectionConfig         `yaml:"collection"`
	DocumentProcessing DocumentProcessingConfig `yaml:"document_processing"`
	Model              ModelConfig              `yaml:"model"`
	Retrieval          RetrievalConfig          `yaml:"retrieval"`
	Qdrant             QdrantConfig             `yaml:"qdrant"`
	Ingestion          IngestionConfig          `yaml:"ingestion"`
	Logging            LoggingConfig            `yaml:"logging"`
	Queries            []string                 `yaml:"queries"`

	// OpenAIAPIKey comes from the OPENAI_API_KEY environment variable only.
	OpenAIAPIKey string `yaml:"-"`
}

// EnvPrefix namespaces environment variable overrides, e.g.
// RAGIT_DOCUMENT_PROCESSING_CHUNK_SIZE=500.
const EnvPrefix = "RAGIT_"

// Load reads a config from path. If the file does not exist, defaults are
// used. Environment overrides and secrets are applied on the result.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidConfig, path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Qdrant.APIKey = os.Getenv("QDRANT_API_KEY")
	return cfg, nil
}

// ApplyOverrides applies command line key=value pairs, e.g.
// "document_processing.chunk_size=500". CLI overrides win over both the
// config file and environment variables.
func (c *AppConfig) ApplyOverrides(args []string) error {
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("%w: override %q is not key=value", domain.ErrInvalidConfig, arg)
		}
		if err := c.set(key, value); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks invariants that would otherwise only surface mid-run.
func (c *AppConfig) Validate() error {
	dp := c.DocumentProcessing
	if dp.ChunkSize <= 0 {
		return fmt.Errorf("%w: document_processing.chunk_size must be positive", domain.ErrInvalidConfig)
	}
	if dp.ChunkOverlap < 0 || dp.ChunkOverlap >= dp.ChunkSize {
		return fmt.Errorf("%w: document_processing.chunk_overlap must be in [0, chunk_size)", domain.ErrInvalidConfig)
	}
	if c.Retrieval.K <= 0 {
		return fmt.Errorf("%w: retrieval.k must be positive", domain.ErrInvalidConfig)
	}
	if c.Ingestion.BatchSize <= 0 {
		return fmt.Errorf("%w: ingestion.batch_size must be positive", domain.ErrInvalidConfig)
	}
	if c.Ingestion.Concurrency <= 0 {
		return fmt.Errorf("%w: ingestion.concurrency must be positive", domain.ErrInvalidConfig)
	}
	if c.Ingestion.MaxRetries < 0 {
		return fmt.Errorf("%w: ingestion.max_retries must not be negative", domain.ErrInvalidConfig)
	}
	if c.Qdrant.URL == "" {
		return fmt.Errorf("%w: qdrant.url is required", domain.ErrInvalidConfig)
	}
	return nil
}

// overridableKeys lists every dotted key reachable from the CLI and, via
// EnvPrefix plus upper snake case, from the environment.
var overridableKeys = []string{
	"app_name",
	"collection.name",
	"document_processing.chunk_size",
	"document_processing.chunk_overlap",
	"model.embedding_model",
	"model.llm_model",
	"model.llm_temperature",
	"retrieval.k",
	"qdrant.url",
	"qdrant.timeout_secs",
	"ingestion.documents_dir",
	"ingestion.batch_size",
	"ingestion.max_retries",
	"ingestion.concurrency",
	"logging.level",
}

func (c *AppConfig) applyEnv() error {
	for _, key := range overridableKeys {
		name := EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if value, ok := os.LookupEnv(name); ok {
			if err := c.set(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *AppConfig) set(key, value string) error {
	switch key {
	case "app_name":
		c.AppName = value
	case "collection.name":
		c.Collection.Name = value
	case "document_processing.chunk_size":
		return setInt(&c.DocumentProcessing.ChunkSize, key, value)
	case "document_processing.chunk_overlap":
		return setInt(&c.DocumentProcessing.ChunkOverlap, key, value)
	case "model.embedding_model":
		c.Model.EmbeddingModel = value
	case "model.llm_model":
		c.Model.LLMModel = value
	case "model.llm_temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, key, err)
		}
		c.Model.LLMTemperature = f
	case "retrieval.k":
		return setInt(&c.Retrieval.K, key, value)
	case "qdrant.url":
		c.Qdrant.URL = value
	case "qdrant.timeout_secs":
		return setInt(&c.Qdrant.TimeoutSecs, key, value)
	case "ingestion.documents_dir":
		c.Ingestion.DocumentsDir = value
	case "ingestion.batch_size":
		return setInt(&c.Ingestion.BatchSize, key, value)
	case "ingestion.max_retries":
		return setInt(&c.Ingestion.MaxRetries, key, value)
	case "ingestion.concurrency":
		return setInt(&c.Ingestion.Concurrency, key, value)
	case "logging.level":
		c.Logging.Level = value
	default:
		return fmt.Errorf("%w: unknown key %q", domain.ErrInvalidConfig, key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, key, err)
	}
	*dst = n
	return nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		AppName:            "ragit",
		Collection:         CollectionConfig{Name: "ragit_documents"},
		DocumentProcessing: DocumentProcessingConfig{ChunkSize: 1000, ChunkOverlap: 200},
		Model: ModelConfig{
			EmbeddingModel: "text-embedding-3-small",
			LLMModel:       "gpt-4o-mini",
			LLMTemperature: 0,
		},
		Retrieval: RetrievalConfig{K: 4},
		Qdrant:    QdrantConfig{URL: "http://localhost:6333", TimeoutSecs: 15},
		Ingestion: IngestionConfig{
			DocumentsDir: "./documents",
			BatchSize:    32,
			MaxRetries:   3,
			Concurrency:  4,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
