package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"ragit/internal/domain"
)

// Pipeline composes loader, chunker, embedding client and vector store into
// the ingestion flow: load -> chunk -> embed (batched) -> upsert.
//
// Failure isolation is per-document: a document that cannot be loaded,
// embedded or stored is recorded in the report and does not block the rest
// of the corpus. The exceptions are a vector dimension mismatch and a
// vector store auth rejection: both would fail identically for every
// remaining document, so they abort the whole run.
//
// Ingestion is at-least-once on failure: batches upserted before a document
// fails are not rolled back, and re-ingestion overwrites them thanks to the
// deterministic chunk IDs.
type Pipeline struct {
	loader   domain.Loader
	chunker  domain.Chunker
	embedder domain.EmbeddingClient
	store    domain.VectorStoreGateway
	log      *slog.Logger

	batchSize   int
	maxRetries  int
	concurrency int

	// The collection dimension is pinned by the first successful batch.
	ensureOnce sync.Once
	ensureErr  error
	dimension  int
}

// Options bounds the pipeline's resource usage.
type Options struct {
	// BatchSize caps how many chunk texts go into one embedding request.
	BatchSize int
	// MaxRetries bounds retries per failed embedding or upsert call.
	MaxRetries int
	// Concurrency bounds how many documents are ingested in parallel.
	Concurrency int
	Logger      *slog.Logger
}

func New(loader domain.Loader, chunker domain.Chunker, embedder domain.EmbeddingClient, store domain.VectorStoreGateway, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{
		loader:      loader,
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		log:         opts.Logger,
		batchSize:   opts.BatchSize,
		maxRetries:  opts.MaxRetries,
		concurrency: opts.Concurrency,
	}
}

// Ingest processes each path through the full flow using a bounded worker
// pool. Each document is handled by exactly one worker, so chunk IDs, which
// are partitioned by document, never see conflicting concurrent writes.
//
// Cancellation is coarse-grained: it is honored between documents, while an
// already started document runs its batches to completion to avoid leaving
// it half-written.
func (p *Pipeline) Ingest(ctx context.Context, paths []string) (*domain.IngestionReport, error) {
	report := &domain.IngestionReport{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Detach the document from cancellation so its in-flight
			// batches complete; timeouts on the external clients still apply.
			n, err := p.ingestDocument(context.WithoutCancel(gctx), path)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, domain.ErrDimensionMismatch), errors.Is(err, domain.ErrVectorStoreAuth):
				return err
			case err != nil:
				p.log.Error("document ingestion failed", "path", path, "error", err)
				report.DocumentsFailed++
				report.Failures = append(report.Failures, domain.DocumentFailure{Path: path, Reason: err.Error()})
			default:
				p.log.Info("document ingested", "path", path, "chunks", n)
				report.DocumentsProcessed++
				report.ChunksIngested += n
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

// ingestDocument runs one document through load -> chunk -> embed -> upsert.
// On a failed batch the remaining batches are skipped; chunks upserted by
// earlier batches stay in the store.
func (p *Pipeline) ingestDocument(ctx context.Context, path string) (int, error) {
	doc, err := p.loader.Load(path)
	if err != nil {
		return 0, err
	}
	chunks, err := p.chunker.Chunk(doc)
	if err != nil {
		return 0, err
	}
	p.log.Debug("document chunked", "path", path, "segments", len(doc.Segments), "chunks", len(chunks))

	ingested := 0
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
		}
		vectors, err := p.embedBatch(ctx, texts)
		if err != nil {
			return ingested, fmt.Errorf("embed batch %d of %s: %w", start/p.batchSize, path, err)
		}
		if err := p.ensureCollection(ctx, len(vectors[0])); err != nil {
			return ingested, err
		}

		embedded := make([]domain.EmbeddedChunk, len(batch))
		for i, ch := range batch {
			if len(vectors[i]) != p.dimension {
				return ingested, fmt.Errorf("%w: chunk %s has dimension %d, collection has %d",
					domain.ErrDimensionMismatch, ch.ID, len(vectors[i]), p.dimension)
			}
			embedded[i] = domain.EmbeddedChunk{Chunk: ch, Vector: vectors[i]}
		}
		if err := p.upsertBatch(ctx, embedded); err != nil {
			return ingested, fmt.Errorf("upsert batch %d of %s: %w", start/p.batchSize, path, err)
		}
		ingested += len(batch)
	}
	return ingested, nil
}

// embedBatch calls the embedding provider with bounded exponential backoff.
// Only provider failures are retried; anything else fails immediately.
func (p *Pipeline) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	var vectors [][]float64
	operation := func() error {
		vs, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			if errors.Is(err, domain.ErrEmbeddingProvider) {
				return err
			}
			return backoff.Permanent(err)
		}
		vectors = vs
		return nil
	}
	if err := backoff.Retry(operation, p.newBackOff(ctx)); err != nil {
		return nil, err
	}
	return vectors, nil
}

// upsertBatch retries transient vector store failures; a dimension mismatch
// or a rejected api-key is permanent.
func (p *Pipeline) upsertBatch(ctx context.Context, embedded []domain.EmbeddedChunk) error {
	operation := func() error {
		err := p.store.Upsert(ctx, embedded)
		if err != nil && (errors.Is(err, domain.ErrDimensionMismatch) || errors.Is(err, domain.ErrVectorStoreAuth)) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(operation, p.newBackOff(ctx))
}

func (p *Pipeline) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.maxRetries)), ctx)
}

// ensureCollection pins the collection dimension to that of the first
// successful batch and creates the collection if absent. Later batches with
// a different dimension abort the run.
func (p *Pipeline) ensureCollection(ctx context.Context, dimension int) error {
	p.ensureOnce.Do(func() {
		p.dimension = dimension
		p.ensureErr = p.store.EnsureCollection(ctx, dimension)
	})
	if p.ensureErr != nil {
		return p.ensureErr
	}
	if dimension != p.dimension {
		return fmt.Errorf("%w: batch has dimension %d, collection has %d",
			domain.ErrDimensionMismatch, dimension, p.dimension)
	}
	return nil
}
