package domain

import (
	"sort"
	"strings"
	"time"
)

// Document represents an ingested file.
// Its content lives in Chunks; the Document only carries metadata.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Filename is the sanitised name the file was uploaded under.
	Filename string

	// FileType is the detected type that selected the extractor.
	FileType FileType

	// Title is the human-readable title found by the extractor.
	// Falls back to the filename without extension.
	Title string

	// Description is optional free text supplied by the user.
	Description string

	// Tags is the set of user-supplied labels.
	Tags []string

	// SizeBytes is the size of the original file.
	SizeBytes int64

	// ChunkCount is the number of chunks derived from the document.
	ChunkCount int

	// Metadata holds structural extractor output (page_count, chapter_count, ...).
	Metadata map[string]any

	// UploadedAt is when the current version was ingested.
	UploadedAt time.Time

	// UpdatedAt is when tags or description last changed.
	UpdatedAt time.Time
}

// HasTag reports whether the document carries tag (case-insensitive).
func (d *Document) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Chunk is a retrievable segment of a document.
// Chunks are immutable once stored; re-ingestion replaces them wholesale.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Overlap is the number of leading runes duplicated from the previous chunk.
	Overlap int

	// Embedding is the vector representation of Content.
	Embedding []float32
}

// Segment is a piece of text produced by a chunker.
type Segment struct {
	// Content is the segment text.
	Content string

	// Offset is the rune offset of the segment within the source text.
	Offset int

	// Overlap is the number of leading runes shared with the previous segment.
	Overlap int
}

// MetadataUpdate changes user-editable document fields.
// Nil fields are left untouched.
type MetadataUpdate struct {
	Tags        *[]string
	Description *string
}

// NormaliseTags trims, lowercases and deduplicates tags, dropping empties.
// The result is sorted so equal sets compare equal.
func NormaliseTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// ReconstructText joins chunks back into the original text.
// Chunks must be ordered by Position; each chunk's overlapping prefix is dropped.
func ReconstructText(chunks []Chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i == 0 || c.Overlap <= 0 {
			b.WriteString(c.Content)
			continue
		}
		runes := []rune(c.Content)
		if c.Overlap >= len(runes) {
			continue
		}
		b.WriteString(string(runes[c.Overlap:]))
	}
	return b.String()
}
