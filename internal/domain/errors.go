package domain

import "errors"

// Error taxonomy for the ingestion and query pipelines. Callers match these
// with errors.Is; concrete errors wrap them with context via fmt.Errorf.
var (
	// ErrUnsupportedFormat is returned for file extensions that are neither
	// .pdf nor .docx. Non-retryable, the document is skipped.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrCorruptDocument is returned when the underlying parser cannot
	// extract text. Non-retryable, the document is skipped.
	ErrCorruptDocument = errors.New("corrupt document")

	// ErrInvalidConfig indicates a configuration error. Fatal at startup.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingProvider indicates a quota, auth or network failure from
	// the embedding provider. Retried with backoff before the document is
	// marked failed.
	ErrEmbeddingProvider = errors.New("embedding provider failure")

	// ErrVectorStore indicates a transient vector store failure. Retried
	// with backoff before the document is marked failed.
	ErrVectorStore = errors.New("vector store failure")

	// ErrVectorStoreAuth means the vector store rejected the credentials.
	// Every later request would fail the same way, so it aborts the run.
	ErrVectorStoreAuth = errors.New("vector store authentication failure")

	// ErrDimensionMismatch means the collection was created with a different
	// vector dimension than the embedding model produces. Fatal, aborts the
	// whole run.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
