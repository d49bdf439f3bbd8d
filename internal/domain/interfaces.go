package domain

import "context"

// Loader reads a source file into an ordered sequence of text segments.
type Loader interface {
	Load(path string) (*RawDocument, error)
}

// Chunker splits a raw document into bounded overlapping chunks.
type Chunker interface {
	Chunk(doc *RawDocument) ([]Chunk, error)
}

// EmbeddingClient converts texts into fixed-dimension vectors. Vectors are
// returned in input order, one per text.
type EmbeddingClient interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorStoreGateway persists embedded chunks and serves similarity search.
// Implementations must be safe for concurrent use.
type VectorStoreGateway interface {
	// EnsureCollection creates the collection if absent. The dimension is
	// fixed at first creation; a later mismatch is ErrDimensionMismatch.
	EnsureCollection(ctx context.Context, dimension int) error
	// Upsert inserts or replaces points keyed by Chunk.ID.
	Upsert(ctx context.Context, chunks []EmbeddedChunk) error
	Search(ctx context.Context, vector []float64, k int) ([]RetrievalResult, error)
	Count(ctx context.Context) (int, error)
}
