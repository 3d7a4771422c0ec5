package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"sopqa/internal/domain"
)

// TextChunker splits document text into overlapping passages of at most
// size runes. Within the tail of each window it prefers a paragraph
// break, then a line break, then a sentence end, then a word boundary,
// and hard-cuts only when none exists. Identical input always yields
// identical output.
type TextChunker struct {
	size    int
	overlap int
}

func NewTextChunker(size, overlap int) *TextChunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	// Boundary cuts land in the tail half of the window, so the overlap
	// must stay below half the window to keep passage starts monotone.
	if overlap*2 > size {
		overlap = size / 2
	}
	return &TextChunker{size: size, overlap: overlap}
}

func (c *TextChunker) Chunk(doc domain.Document) ([]domain.Passage, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, nil
	}

	runes := []rune(doc.Text)
	var passages []domain.Passage

	start := 0
	ordinal := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.cutPoint(runes, start, end)
		}

		passages = append(passages, domain.Passage{
			ID:      passageID(doc.ID, ordinal, start, end),
			Source:  doc.ID,
			Ordinal: ordinal,
			Start:   start,
			End:     end,
			Text:    string(runes[start:end]),
		})
		ordinal++

		if end == len(runes) {
			break
		}

		next := end - c.overlap
		if next <= start {
			// Guarantee forward progress when overlap swallows the window.
			next = start + 1
		}
		start = next
	}

	return passages, nil
}

// cutPoint finds the best split position in (floor, end], where floor is
// the midpoint of the window. Returned position is an exclusive end
// offset strictly greater than start.
func (c *TextChunker) cutPoint(runes []rune, start, end int) int {
	floor := start + c.size/2

	// Paragraph break: cut after the blank line.
	for i := end - 1; i > floor; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}

	// Line break.
	for i := end - 1; i > floor; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}

	// Sentence end followed by space.
	for i := end - 2; i > floor; i-- {
		if isSentenceEnd(runes[i]) && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}

	// Word boundary.
	for i := end - 1; i > floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}

	// No boundary in the window tail; hard cut.
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func passageID(source string, ordinal, start, end int) string {
	data := fmt.Sprintf("%s:%d:%d-%d", source, ordinal, start, end)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
