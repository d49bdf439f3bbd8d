package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"ragit/internal/domain"
)

// Gateway is an in-memory vector store using brute-force cosine similarity.
// It mirrors the Qdrant gateway's semantics, including replace-by-ID
// upserts, so pipeline behavior can be tested without a network.
type Gateway struct {
	mu        sync.RWMutex
	dimension int
	points    map[string]domain.EmbeddedChunk
}

func NewGateway() *Gateway {
	return &Gateway{points: make(map[string]domain.EmbeddedChunk)}
}

func (g *Gateway) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrVectorStore, dimension)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dimension == 0 {
		g.dimension = dimension
		return nil
	}
	if g.dimension != dimension {
		return fmt.Errorf("%w: collection has dimension %d, embeddings have %d",
			domain.ErrDimensionMismatch, g.dimension, dimension)
	}
	return nil
}

func (g *Gateway) Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ec := range chunks {
		if len(ec.Vector) != g.dimension {
			return fmt.Errorf("%w: vector has dimension %d, collection has %d",
				domain.ErrDimensionMismatch, len(ec.Vector), g.dimension)
		}
		g.points[ec.Chunk.ID] = ec
	}
	return nil
}

func (g *Gateway) Search(ctx context.Context, vector []float64, k int) ([]domain.RetrievalResult, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if k <= 0 {
		k = 4
	}
	results := make([]domain.RetrievalResult, 0, len(g.points))
	for _, ec := range g.points {
		results = append(results, domain.RetrievalResult{
			ChunkID:    ec.Chunk.ID,
			Text:       ec.Chunk.Text,
			SourcePath: ec.Chunk.SourcePath,
			Score:      cosine(ec.Vector, vector),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func (g *Gateway) Count(ctx context.Context) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.points), nil
}

// Clear drops all points, keeping the pinned dimension.
func (g *Gateway) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.points = make(map[string]domain.EmbeddedChunk)
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
