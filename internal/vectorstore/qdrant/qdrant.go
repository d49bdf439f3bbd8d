package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ragit/internal/domain"
)

// Gateway is a minimal REST client to Qdrant implementing
// domain.VectorStoreGateway. It assumes cosine distance and creates the
// collection idempotently on first use. The embedded http.Client makes it
// safe for concurrent use across ingestion workers.
type Gateway struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewGateway(cfg Config) *Gateway {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Gateway{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type collectionInfo struct {
	Result struct {
		Status      string `json:"status"`
		PointsCount int    `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// EnsureCollection creates the collection with the given vector dimension if
// it does not exist. An existing collection with a different dimension is a
// configuration/model mismatch that cannot be worked around, so it fails
// with ErrDimensionMismatch.
func (g *Gateway) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrVectorStore, dimension)
	}
	var info collectionInfo
	status, err := g.getJSON(ctx, fmt.Sprintf("%s/collections/%s", g.url, g.collection), &info)
	switch {
	case err != nil:
		return err
	case status == http.StatusOK:
		if got := info.Result.Config.Params.Vectors.Size; got != dimension {
			return fmt.Errorf("%w: collection %q has dimension %d, embeddings have %d",
				domain.ErrDimensionMismatch, g.collection, got, dimension)
		}
		return nil
	case status == http.StatusNotFound:
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		return g.doJSON(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", g.url, g.collection), body, nil)
	default:
		return fmt.Errorf("%w: get collection %q: status %d", domain.ErrVectorStore, g.collection, status)
	}
}

// Upsert writes points keyed by Chunk.ID. Deterministic IDs make this
// replace prior chunks of a re-ingested document instead of duplicating
// them. wait=true so a successful response means the write is durable.
func (g *Gateway) Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]map[string]any, len(chunks))
	for i, ec := range chunks {
		points[i] = map[string]any{
			"id":     ec.Chunk.ID,
			"vector": ec.Vector,
			"payload": map[string]any{
				"source_path":   ec.Chunk.SourcePath,
				"chunk_index":   ec.Chunk.Index,
				"char_offset":   ec.Chunk.CharOffset,
				"start_segment": ec.Chunk.StartSegment,
				"end_segment":   ec.Chunk.EndSegment,
				"text":          ec.Chunk.Text,
			},
		}
	}
	body := map[string]any{"points": points}
	return g.doJSON(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", g.url, g.collection), body, nil)
}

func (g *Gateway) Search(ctx context.Context, vector []float64, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		k = 4
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := g.doJSON(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", g.url, g.collection), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.RetrievalResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		res := domain.RetrievalResult{ChunkID: r.ID, Score: r.Score}
		if v, ok := r.Payload["text"].(string); ok {
			res.Text = v
		}
		if v, ok := r.Payload["source_path"].(string); ok {
			res.SourcePath = v
		}
		results = append(results, res)
	}
	return results, nil
}

// Count returns the exact number of points in the collection.
func (g *Gateway) Count(ctx context.Context) (int, error) {
	req := map[string]any{"exact": true}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := g.doJSON(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/count", g.url, g.collection), req, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// DeleteCollection drops the whole collection. Deleting a collection that
// does not exist is not an error.
func (g *Gateway) DeleteCollection(ctx context.Context) error {
	url := fmt.Sprintf("%s/collections/%s", g.url, g.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}
	g.setHeaders(req)
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: DELETE %s: %v", domain.ErrVectorStore, url, err)
	}
	defer resp.Body.Close()
	if err := authStatusErr(resp.StatusCode, http.MethodDelete, url); err != nil {
		return err
	}
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: DELETE %s: %s", domain.ErrVectorStore, url, resp.Status)
	}
	return nil
}

// getJSON returns the HTTP status so callers can distinguish 404 from other
// failures; a transport error still wraps ErrVectorStore.
func (g *Gateway) getJSON(ctx context.Context, url string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}
	g.setHeaders(req)
	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: GET %s: %v", domain.ErrVectorStore, url, err)
	}
	defer resp.Body.Close()
	if err := authStatusErr(resp.StatusCode, http.MethodGet, url); err != nil {
		return resp.StatusCode, err
	}
	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: decode GET %s: %v", domain.ErrVectorStore, url, err)
		}
	}
	return resp.StatusCode, nil
}

// authStatusErr maps 401/403 to ErrVectorStoreAuth so callers can tell a
// bad api-key apart from a transient failure.
func authStatusErr(status int, method, url string) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%w: %s %s: status %d", domain.ErrVectorStoreAuth, method, url, status)
	}
	return nil
}

func (g *Gateway) doJSON(ctx context.Context, method, url string, body, out any) error {
	var payload *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode %s %s: %v", domain.ErrVectorStore, method, url, err)
		}
		payload = bytes.NewReader(data)
	} else {
		payload = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}
	req.Header.Set("Content-Type", "application/json")
	g.setHeaders(req)
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrVectorStore, method, url, err)
	}
	defer resp.Body.Close()
	if err := authStatusErr(resp.StatusCode, method, url); err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s: %s", domain.ErrVectorStore, method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode %s %s: %v", domain.ErrVectorStore, method, url, err)
		}
	}
	return nil
}

func (g *Gateway) setHeaders(req *http.Request) {
	if g.apiKey != "" {
		req.Header.Set("api-key", g.apiKey)
	}
}
