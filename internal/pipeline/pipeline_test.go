package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"ragit/internal/chunker"
	"ragit/internal/domain"
	"ragit/internal/vectorstore/memory"
)

// fakeLoader serves canned documents without touching the filesystem.
type fakeLoader struct {
	docs map[string]*domain.RawDocument
}

func (l *fakeLoader) Load(path string) (*domain.RawDocument, error) {
	if !strings.HasSuffix(path, ".pdf") && !strings.HasSuffix(path, ".docx") {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, path)
	}
	doc, ok := l.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCorruptDocument, path)
	}
	return doc, nil
}

// fakeEmbedder returns deterministic vectors and can be told to fail from a
// given call number on.
type fakeEmbedder struct {
	mu        sync.Mutex
	calls     int
	dim       int
	failCalls map[int]error // 1-based call number -> error
}

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if err, ok := e.failCalls[e.calls]; ok {
		return nil, err
	}
	dim := e.dim
	if dim == 0 {
		dim = 4
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v := make([]float64, dim)
		for j := range v {
			v[j] = float64(len(text)+i+j) / 100
		}
		out[i] = v
	}
	return out, nil
}

func (e *fakeEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func docOf(path string, chars int) *domain.RawDocument {
	return &domain.RawDocument{
		SourcePath: path,
		Format:     domain.FormatPDF,
		Segments:   []domain.Segment{{Index: 0, Text: strings.Repeat("x", chars)}},
	}
}

func newTestPipeline(t *testing.T, l domain.Loader, e domain.EmbeddingClient, store domain.VectorStoreGateway, opts Options) *Pipeline {
	t.Helper()
	c, err := chunker.New(100, 10)
	if err != nil {
		t.Fatal(err)
	}
	return New(l, c, e, store, opts)
}

func TestIngest_IdempotentReingestion(t *testing.T) {
	store := memory.NewGateway()
	l := &fakeLoader{docs: map[string]*domain.RawDocument{"a.pdf": docOf("a.pdf", 950)}}
	p := newTestPipeline(t, l, &fakeEmbedder{}, store, Options{BatchSize: 4})

	first, err := p.Ingest(context.Background(), []string{"a.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	countAfterFirst, _ := store.Count(context.Background())

	// A fresh pipeline against the same store, same document.
	p2 := newTestPipeline(t, l, &fakeEmbedder{}, store, Options{BatchSize: 4})
	second, err := p2.Ingest(context.Background(), []string{"a.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	countAfterSecond, _ := store.Count(context.Background())

	if first.ChunksIngested != second.ChunksIngested {
		t.Fatalf("chunk counts differ across runs: %d vs %d", first.ChunksIngested, second.ChunksIngested)
	}
	if countAfterFirst != countAfterSecond {
		t.Fatalf("re-ingestion duplicated points: %d then %d", countAfterFirst, countAfterSecond)
	}
}

func TestIngest_FailedBatchSkipsRemaining(t *testing.T) {
	store := memory.NewGateway()
	// 950 chars, chunk size 100 overlap 10 -> stride 90 -> 11 chunks.
	// Batch size 4 -> 3 batches of 4, 4, 3 chunks.
	l := &fakeLoader{docs: map[string]*domain.RawDocument{"a.pdf": docOf("a.pdf", 950)}}
	emb := &fakeEmbedder{failCalls: map[int]error{
		2: fmt.Errorf("%w: quota exceeded", domain.ErrEmbeddingProvider),
		3: fmt.Errorf("%w: quota exceeded", domain.ErrEmbeddingProvider),
	}}
	p := newTestPipeline(t, l, emb, store, Options{BatchSize: 4, MaxRetries: 1})

	report, err := p.Ingest(context.Background(), []string{"a.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if report.DocumentsFailed != 1 || report.DocumentsProcessed != 0 {
		t.Fatalf("expected 1 failed document, got %+v", report)
	}
	// Batch 1 was already upserted and stays (at-least-once on failure).
	count, _ := store.Count(context.Background())
	if count != 4 {
		t.Fatalf("expected 4 chunks from batch 1 to remain, got %d", count)
	}
	// Batch 2 was attempted twice (1 retry); batch 3 never.
	if got := emb.callCount(); got != 3 {
		t.Fatalf("expected 3 embed calls (batch 1 + batch 2 retried once), got %d", got)
	}
}

func TestIngest_PerDocumentIsolation(t *testing.T) {
	store := memory.NewGateway()
	l := &fakeLoader{docs: map[string]*domain.RawDocument{"good.pdf": docOf("good.pdf", 150)}}
	p := newTestPipeline(t, l, &fakeEmbedder{}, store, Options{BatchSize: 8, Concurrency: 2})

	report, err := p.Ingest(context.Background(), []string{"notes.txt", "good.pdf", "missing.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if report.DocumentsProcessed != 1 {
		t.Fatalf("expected 1 processed document, got %d", report.DocumentsProcessed)
	}
	if report.DocumentsFailed != 2 {
		t.Fatalf("expected 2 failed documents, got %d", report.DocumentsFailed)
	}
	count, _ := store.Count(context.Background())
	if count == 0 {
		t.Fatal("good document was not ingested")
	}
	for _, f := range report.Failures {
		if f.Reason == "" {
			t.Fatalf("failure for %s has no reason", f.Path)
		}
	}
}

func TestIngest_UnsupportedFormatWritesNothing(t *testing.T) {
	store := memory.NewGateway()
	l := &fakeLoader{docs: map[string]*domain.RawDocument{}}
	p := newTestPipeline(t, l, &fakeEmbedder{}, store, Options{BatchSize: 8})

	report, err := p.Ingest(context.Background(), []string{"notes.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if report.DocumentsFailed != 1 {
		t.Fatalf("expected 1 failed document, got %+v", report)
	}
	count, _ := store.Count(context.Background())
	if count != 0 {
		t.Fatalf("expected no vector store writes, got %d points", count)
	}
}

func TestIngest_DimensionMismatchAbortsRun(t *testing.T) {
	store := memory.NewGateway()
	if err := store.EnsureCollection(context.Background(), 8); err != nil {
		t.Fatal(err)
	}
	l := &fakeLoader{docs: map[string]*domain.RawDocument{"a.pdf": docOf("a.pdf", 150)}}
	// The embedder produces dimension 4, the collection is pinned at 8.
	p := newTestPipeline(t, l, &fakeEmbedder{dim: 4}, store, Options{BatchSize: 8})

	report, err := p.Ingest(context.Background(), []string{"a.pdf"})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch to abort the run, got %v", err)
	}
	// The report survives the abort so callers can still print a summary.
	if report == nil {
		t.Fatal("expected a report alongside the fatal error")
	}
}

// authRejectingStore simulates a vector store with a bad api-key: every
// write is rejected as an auth failure.
type authRejectingStore struct {
	*memory.Gateway
	upserts int
}

func (s *authRejectingStore) Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	s.upserts++
	return fmt.Errorf("%w: status 401", domain.ErrVectorStoreAuth)
}

func TestIngest_AuthFailureAbortsRunWithoutRetry(t *testing.T) {
	store := &authRejectingStore{Gateway: memory.NewGateway()}
	l := &fakeLoader{docs: map[string]*domain.RawDocument{
		"a.pdf": docOf("a.pdf", 150),
		"b.pdf": docOf("b.pdf", 150),
	}}
	p := newTestPipeline(t, l, &fakeEmbedder{}, store, Options{BatchSize: 8, MaxRetries: 3, Concurrency: 1})

	report, err := p.Ingest(context.Background(), []string{"a.pdf", "b.pdf"})
	if !errors.Is(err, domain.ErrVectorStoreAuth) {
		t.Fatalf("expected ErrVectorStoreAuth to abort the run, got %v", err)
	}
	if report == nil {
		t.Fatal("expected a report alongside the fatal error")
	}
	// Rejected credentials are permanent: no backoff retries.
	if store.upserts != 1 {
		t.Fatalf("expected 1 upsert attempt, got %d", store.upserts)
	}
}

func TestIngest_CancellationBetweenDocuments(t *testing.T) {
	store := memory.NewGateway()
	docs := map[string]*domain.RawDocument{}
	paths := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		path := fmt.Sprintf("doc%d.pdf", i)
		docs[path] = docOf(path, 150)
		paths = append(paths, path)
	}
	p := newTestPipeline(t, &fakeLoader{docs: docs}, &fakeEmbedder{}, store, Options{BatchSize: 8, Concurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Ingest(ctx, paths)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
