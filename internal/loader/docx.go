package loader

import (
	"fmt"
	"os"

	"github.com/fumiama/go-docx"

	"ragit/internal/domain"
)

// loadDOCX extracts body text paragraph by paragraph, one segment per
// paragraph or table, preserving document order.
func loadDOCX(path string) (*domain.RawDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open docx %s: %v", domain.ErrCorruptDocument, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat docx %s: %v", domain.ErrCorruptDocument, path, err)
	}
	parsed, err := docx.Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: parse docx %s: %v", domain.ErrCorruptDocument, path, err)
	}

	doc := &domain.RawDocument{SourcePath: path, Format: domain.FormatDOCX}
	for _, item := range parsed.Document.Body.Items {
		if s, ok := item.(fmt.Stringer); ok {
			appendSegment(doc, s.String())
		}
	}
	if len(doc.Segments) == 0 {
		return nil, fmt.Errorf("%w: no text extracted from %s", domain.ErrCorruptDocument, path)
	}
	return doc, nil
}
