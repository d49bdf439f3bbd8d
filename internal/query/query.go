package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"ragit/internal/domain"
)

// LLM is the narrow chat surface the query pipeline needs.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// promptTemplate grounds the model in the retrieved context and forbids
// answers from outside it.
const promptTemplate = `You are a helpful assistant. Answer the question based on the provided context.

If you cannot answer the question based on the context, say "I don't have enough information to answer that question."

Do not make up information. Only use the context provided.

Context:
%s

Question: %s

Answer:`

// maxExcerptLen caps source excerpts returned alongside an answer.
const maxExcerptLen = 500

// Source is a cited chunk backing an answer.
type Source struct {
	SourcePath string
	Excerpt    string
	Score      float64
}

// Answer is the result of one question against the collection.
type Answer struct {
	Question string
	Text     string
	Sources  []Source
	Elapsed  time.Duration
}

// Pipeline answers questions by embedding them, retrieving the top-k chunks
// and conditioning the LLM on them.
type Pipeline struct {
	embedder domain.EmbeddingClient
	store    domain.VectorStoreGateway
	llm      LLM
	k        int
	log      *slog.Logger
}

func New(embedder domain.EmbeddingClient, store domain.VectorStoreGateway, llm LLM, k int, log *slog.Logger) *Pipeline {
	if k <= 0 {
		k = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{embedder: embedder, store: store, llm: llm, k: k, log: log}
}

// Answer runs one question through embed -> search -> prompt -> complete and
// returns the answer with its cited sources.
func (p *Pipeline) Answer(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("empty question")
	}
	start := time.Now()

	vectors, err := p.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	results, err := p.store.Search(ctx, vectors[0], p.k)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	p.log.Debug("context retrieved", "question", question, "results", len(results))

	contexts := make([]string, len(results))
	sources := make([]Source, len(results))
	for i, r := range results {
		contexts[i] = r.Text
		sources[i] = Source{
			SourcePath: r.SourcePath,
			Excerpt:    truncate(r.Text, maxExcerptLen),
			Score:      r.Score,
		}
	}

	prompt := fmt.Sprintf(promptTemplate, strings.Join(contexts, "\n\n---\n\n"), question)
	text, err := p.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Answer{
		Question: question,
		Text:     strings.TrimSpace(text),
		Sources:  sources,
		Elapsed:  time.Since(start),
	}, nil
}

// truncate cuts after n code points, never mid-rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
