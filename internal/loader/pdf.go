package loader

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	"ragit/internal/domain"
)

// loadPDF extracts plain text page by page, one segment per page. The pdf
// library panics on some malformed files, so the whole parse is guarded and
// a panic surfaces as a corrupt document.
func loadPDF(path string) (doc *domain.RawDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: parse pdf %s: %v", domain.ErrCorruptDocument, path, r)
		}
	}()
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf %s: %v", domain.ErrCorruptDocument, path, err)
	}
	defer f.Close()

	doc = &domain.RawDocument{SourcePath: path, Format: domain.FormatPDF}
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not corrupt the document.
			continue
		}
		appendSegment(doc, text)
	}
	if len(doc.Segments) == 0 {
		return nil, fmt.Errorf("%w: no text extracted from %s", domain.ErrCorruptDocument, path)
	}
	return doc, nil
}
