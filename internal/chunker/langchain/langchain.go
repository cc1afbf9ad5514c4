// Package langchain adapts the langchaingo recursive character splitter to the
// Chunker port.
//
// The splitter trims and rejoins whitespace, so segment overlaps are inferred
// and exact reconstruction is not guaranteed.
package langchain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.Chunker = (*Splitter)(nil)

// Splitter wraps textsplitter.RecursiveCharacter.
type Splitter struct {
	chunkSize int
	overlap   int
	splitter  textsplitter.RecursiveCharacter
}

// New creates a splitter. Returns domain.ErrInvalidConfiguration unless
// 0 <= overlap < chunkSize.
func New(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 || overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk size %d, overlap %d", domain.ErrInvalidConfiguration, chunkSize, overlap)
	}
	return &Splitter{
		chunkSize: chunkSize,
		overlap:   overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

// ChunkSize returns the maximum segment length in runes.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap in runes.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the segments of text.
func (s *Splitter) Split(text string) ([]domain.Segment, error) {
	if text == "" {
		return []domain.Segment{}, nil
	}
	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []domain.Segment{{Content: text}}, nil
	}

	parts, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	segments := make([]domain.Segment, 0, len(parts))
	cursor := 0 // byte offset of the previous match
	prev := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		seg := domain.Segment{Content: part, Offset: -1}
		if idx := strings.Index(text[cursor:], part); idx >= 0 {
			seg.Offset = utf8.RuneCountInString(text[:cursor+idx])
			cursor += idx
		}
		if prev != "" {
			seg.Overlap = sharedRunes(prev, part, s.overlap)
		}
		segments = append(segments, seg)
		prev = part
	}
	return segments, nil
}

// sharedRunes returns the length in runes of the longest suffix of prev that
// is also a prefix of next, capped at limit.
func sharedRunes(prev, next string, limit int) int {
	p, n := []rune(prev), []rune(next)
	longest := min(limit, len(p), len(n))
	for l := longest; l > 0; l-- {
		if string(p[len(p)-l:]) == string(n[:l]) {
			return l
		}
	}
	return 0
}
