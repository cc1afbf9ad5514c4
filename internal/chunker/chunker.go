package chunker

import (
	"fmt"
	"unicode"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.Chunker = (*Recursive)(nil)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping runes.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// DefaultSeparators are the split boundaries in order of preference.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "? ", "! ", " "}

// Recursive splits text at the coarsest boundary that fits the size budget.
type Recursive struct {
	chunkSize  int
	overlap    int
	separators [][]rune
}

// Option configures the chunker.
type Option func(*Recursive)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(c *Recursive) {
		c.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in runes.
func WithOverlap(overlap int) Option {
	return func(c *Recursive) {
		c.overlap = overlap
	}
}

// WithSeparators replaces the boundary list. Earlier entries are preferred.
func WithSeparators(seps ...string) Option {
	return func(c *Recursive) {
		c.separators = toRunes(seps)
	}
}

// New creates a recursive chunker.
// Returns domain.ErrInvalidConfiguration unless 0 <= overlap < chunkSize.
func New(opts ...Option) (*Recursive, error) {
	c := &Recursive{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: toRunes(DefaultSeparators),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, c.chunkSize)
	}
	if c.overlap < 0 || c.overlap >= c.chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0, %d)",
			domain.ErrInvalidConfiguration, c.overlap, c.chunkSize)
	}
	return c, nil
}

// ChunkSize returns the maximum segment length in runes.
func (c *Recursive) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap in runes.
func (c *Recursive) Overlap() int { return c.overlap }

// Split returns the segments of text.
func (c *Recursive) Split(text string) ([]domain.Segment, error) {
	if text == "" {
		return []domain.Segment{}, nil
	}

	runes := []rune(text)
	n := len(runes)
	segments := make([]domain.Segment, 0, n/(c.chunkSize-c.overlap)+1)

	start, prevEnd := 0, 0
	for {
		if n-start <= c.chunkSize {
			segments = append(segments, c.segment(runes, start, n, prevEnd))
			return segments, nil
		}

		end := c.splitPoint(runes, start)
		segments = append(segments, c.segment(runes, start, end, prevEnd))

		prevEnd = end
		start = c.nextStart(runes, end)
	}
}

func (c *Recursive) segment(runes []rune, start, end, prevEnd int) domain.Segment {
	overlap := 0
	if start < prevEnd {
		overlap = prevEnd - start
	}
	return domain.Segment{
		Content: string(runes[start:end]),
		Offset:  start,
		Overlap: overlap,
	}
}

// splitPoint returns the exclusive end of the segment starting at start.
// A split point must leave more than overlap runes in the segment so the
// next segment starts strictly later.
func (c *Recursive) splitPoint(runes []rune, start int) int {
	limit := start + c.chunkSize
	minEnd := start + c.overlap + 1

	for _, sep := range c.separators {
		if p := lastBoundary(runes, sep, minEnd, limit); p > 0 {
			return p
		}
	}
	return limit
}

// lastBoundary returns the end position of the last occurrence of sep that
// ends within [minEnd, limit], or -1.
func lastBoundary(runes, sep []rune, minEnd, limit int) int {
	if len(sep) == 0 {
		return -1
	}
	for p := limit; p >= minEnd; p-- {
		i := p - len(sep)
		if i < 0 {
			break
		}
		if hasPrefixAt(runes, sep, i) {
			return p
		}
	}
	return -1
}

func hasPrefixAt(runes, sep []rune, i int) bool {
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}

// nextStart backs up overlap runes from end, then moves forward past the
// first whitespace in the first half of that window so the next segment
// does not open mid-word.
func (c *Recursive) nextStart(runes []rune, end int) int {
	start := end - c.overlap
	window := start + c.overlap/2
	for i := start; i < window; i++ {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return start
}

func toRunes(seps []string) [][]rune {
	out := make([][]rune, 0, len(seps))
	for _, s := range seps {
		if s != "" {
			out = append(out, []rune(s))
		}
	}
	return out
}
