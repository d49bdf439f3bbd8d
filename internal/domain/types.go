package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// Format identifies a supported source document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Segment is one ordered unit of extracted text: a PDF page or a DOCX
// paragraph. Segment order is preserved so chunk provenance stays
// reproducible across re-ingestions.
type Segment struct {
	Index int
	Text  string
}

// RawDocument is a parsed source file before chunking.
type RawDocument struct {
	SourcePath string
	Format     Format
	Segments   []Segment
}

// Chunk is a bounded contiguous slice of document text with overlap,
// the unit of embedding and retrieval.
type Chunk struct {
	ID           string
	Text         string
	SourcePath   string
	Index        int
	StartSegment int
	EndSegment   int
	CharOffset   int
}

// chunkNamespace seeds deterministic chunk IDs. It must never change:
// re-ingesting an unmodified document has to produce identical IDs so
// upserts replace prior chunks instead of duplicating them.
var chunkNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

// ChunkID returns the deterministic ID for a chunk of the given document.
// It is a pure function of (sourcePath, index): the same inputs yield the
// same UUID on every run and every machine. The UUID form also satisfies
// Qdrant's point ID requirements.
func ChunkID(sourcePath string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(sourcePath+":"+strconv.Itoa(index))).String()
}

// EmbeddedChunk pairs a chunk with its embedding vector. It is created once
// per chunk and lives only until it is persisted into the vector store.
type EmbeddedChunk struct {
	Chunk  Chunk
	Vector []float64
}

// Dim returns the dimensionality of the embedded vector.
func (e EmbeddedChunk) Dim() int { return len(e.Vector) }

// RetrievalResult is a matching chunk returned by similarity search.
type RetrievalResult struct {
	ChunkID    string
	Text       string
	SourcePath string
	Score      float64
}

// DocumentFailure records why a single document could not be ingested.
type DocumentFailure struct {
	Path   string
	Reason string
}

// IngestionReport summarizes one ingestion run.
type IngestionReport struct {
	DocumentsProcessed int
	DocumentsFailed    int
	ChunksIngested     int
	Failures           []DocumentFailure
}
