package chunker

import (
	"fmt"
	"sort"

	"ragit/internal/domain"
)

// WindowChunker splits documents into fixed-size character windows that
// share `overlap` characters with their neighbor. A window boundary falling
// mid-word is accepted as-is; there is no semantic re-alignment.
type WindowChunker struct {
	size    int
	overlap int
}

// New validates the window parameters. Overlap must be smaller than the
// window size, otherwise the window could not advance.
func New(size, overlap int) (*WindowChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", domain.ErrInvalidConfig, overlap, size)
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

// Chunk concatenates the document's segments, separated by a single
// newline, and slides a window of `size` characters advancing by
// `size-overlap` per step. Sizes and offsets count Unicode code points, not
// bytes, so a window boundary never splits a multi-byte rune. The last
// chunk may be shorter. Chunk IDs are a pure function of (source path,
// chunk index), so re-chunking an unmodified document yields identical IDs.
func (c *WindowChunker) Chunk(doc *domain.RawDocument) ([]domain.Chunk, error) {
	var text []rune
	starts := make([]int, 0, len(doc.Segments))
	for i, seg := range doc.Segments {
		if i > 0 {
			text = append(text, '\n')
		}
		starts = append(starts, len(text))
		text = append(text, []rune(seg.Text)...)
	}
	if len(text) == 0 {
		return nil, nil
	}

	stride := c.size - c.overlap
	var chunks []domain.Chunk
	for idx, off := 0, 0; off < len(text); idx, off = idx+1, off+stride {
		end := off + c.size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, domain.Chunk{
			ID:           domain.ChunkID(doc.SourcePath, idx),
			Text:         string(text[off:end]),
			SourcePath:   doc.SourcePath,
			Index:        idx,
			StartSegment: segmentAt(starts, off),
			EndSegment:   segmentAt(starts, end-1),
			CharOffset:   off,
		})
		if end == len(text) {
			break
		}
	}
	return chunks, nil
}

// segmentAt maps a character offset in the concatenated text back to the
// index of the segment containing it.
func segmentAt(starts []int, off int) int {
	i := sort.SearchInts(starts, off+1) - 1
	if i < 0 {
		i = 0
	}
	return i
}
