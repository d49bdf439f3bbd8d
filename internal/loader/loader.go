package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"ragit/internal/domain"
)

// FileLoader reads PDF and DOCX files into ordered text segments. Reads are
// strictly read-only; source files are never touched beyond opening them.
type FileLoader struct{}

func New() *FileLoader { return &FileLoader{} }

// Load parses the file at path into a RawDocument. Unknown extensions fail
// with ErrUnsupportedFormat, parser failures with ErrCorruptDocument.
func (l *FileLoader) Load(path string) (*domain.RawDocument, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return loadPDF(path)
	case ".docx":
		return loadDOCX(path)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, path)
	}
}

// appendSegment normalizes and appends one extracted text unit, keeping the
// running segment index dense so provenance survives empty pages.
func appendSegment(doc *domain.RawDocument, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	doc.Segments = append(doc.Segments, domain.Segment{
		Index: len(doc.Segments),
		Text:  text,
	})
}
