package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"ragit/internal/config"
	"ragit/internal/embedding"
	"ragit/internal/llm"
	"ragit/internal/logger"
	"ragit/internal/query"
	"ragit/internal/tui"
	"ragit/internal/vectorstore/qdrant"
)

// ragit-chat opens an interactive chat over an already ingested collection.
func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "Path to YAML config file")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ragit-chat [--config=config.yaml] [key=value ...]")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ApplyOverrides(flag.Args()); err != nil {
		log.Fatalf("invalid override: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	slogger := logger.New(cfg.Logging.Level)

	embedder, err := embedding.NewOpenAI(cfg.OpenAIAPIKey, cfg.Model.EmbeddingModel)
	if err != nil {
		log.Fatalf("embedding client init failed: %v", err)
	}
	chat, err := llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.Model.LLMModel, cfg.Model.LLMTemperature)
	if err != nil {
		log.Fatalf("chat client init failed: %v", err)
	}
	store := qdrant.NewGateway(qdrant.Config{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Collection.Name,
		Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
	})

	qp := query.New(embedder, store, chat, cfg.Retrieval.K, slogger)
	m := tui.New(qp, cfg.Collection.Name)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}
