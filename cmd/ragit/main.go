package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"ragit/internal/chunker"
	"ragit/internal/config"
	"ragit/internal/domain"
	"ragit/internal/embedding"
	"ragit/internal/llm"
	"ragit/internal/loader"
	"ragit/internal/logger"
	"ragit/internal/pipeline"
	"ragit/internal/query"
	"ragit/internal/vectorstore/qdrant"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ragit:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var cfgPath string
	var reset bool
	flag.StringVar(&cfgPath, "config", "config.yaml", "Path to YAML config file")
	flag.BoolVar(&reset, "reset", false, "Drop the collection before ingesting")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ragit [--config=config.yaml] [--reset] [key=value ...]")
		fmt.Fprintln(os.Stderr, "Ingests the configured document directory, then answers the configured sample queries.")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyOverrides(flag.Args()); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := embedding.NewOpenAI(cfg.OpenAIAPIKey, cfg.Model.EmbeddingModel)
	if err != nil {
		return err
	}
	store := qdrant.NewGateway(qdrant.Config{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Collection.Name,
		Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
	})
	chk, err := chunker.New(cfg.DocumentProcessing.ChunkSize, cfg.DocumentProcessing.ChunkOverlap)
	if err != nil {
		return err
	}
	if reset {
		log.Warn("dropping collection", "collection", cfg.Collection.Name)
		if err := store.DeleteCollection(ctx); err != nil {
			return err
		}
	}

	paths, err := collectDocuments(cfg.Ingestion.DocumentsDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no documents found in %s", cfg.Ingestion.DocumentsDir)
	}
	log.Info("starting ingestion", "documents", len(paths), "collection", cfg.Collection.Name)

	pipe := pipeline.New(loader.New(), chk, embedder, store, pipeline.Options{
		BatchSize:   cfg.Ingestion.BatchSize,
		MaxRetries:  cfg.Ingestion.MaxRetries,
		Concurrency: cfg.Ingestion.Concurrency,
		Logger:      log,
	})
	// Ingest returns the report even when it aborts, so the summary of
	// what did and did not make it in is printed on every path.
	report, err := pipe.Ingest(ctx, paths)
	printReport(report)
	if err != nil {
		return err
	}

	if len(cfg.Queries) > 0 {
		chat, err := llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.Model.LLMModel, cfg.Model.LLMTemperature)
		if err != nil {
			return err
		}
		qp := query.New(embedder, store, chat, cfg.Retrieval.K, log)
		for _, question := range cfg.Queries {
			answer, err := qp.Answer(ctx, question)
			if err != nil {
				return fmt.Errorf("query %q: %w", question, err)
			}
			printAnswer(answer)
		}
	}

	if report.DocumentsFailed > 0 {
		return fmt.Errorf("%d of %d documents failed ingestion",
			report.DocumentsFailed, report.DocumentsFailed+report.DocumentsProcessed)
	}
	return nil
}

// collectDocuments walks the configured directory and returns every regular
// file, sorted for stable run order. Unsupported formats are not filtered
// here; the loader rejects them and they show up in the report.
func collectDocuments(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan documents dir: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func printReport(report *domain.IngestionReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DOCUMENTS\tFAILED\tCHUNKS")
	fmt.Fprintf(w, "%d\t%d\t%d\n", report.DocumentsProcessed, report.DocumentsFailed, report.ChunksIngested)
	w.Flush()
	if len(report.Failures) > 0 {
		fmt.Println()
		fw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(fw, "FAILED DOCUMENT\tREASON")
		for _, f := range report.Failures {
			fmt.Fprintf(fw, "%s\t%s\n", f.Path, f.Reason)
		}
		fw.Flush()
	}
	fmt.Println()
}

func printAnswer(a *query.Answer) {
	fmt.Printf("Q: %s\n", a.Question)
	fmt.Printf("A: %s\n", a.Text)
	if len(a.Sources) > 0 {
		fmt.Println("Sources:")
		for _, s := range a.Sources {
			fmt.Printf("  - %s (score %.3f)\n", s.SourcePath, s.Score)
		}
	}
	fmt.Println()
}
