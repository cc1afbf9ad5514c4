package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Extractor turns the bytes of one file format into plain text.
type Extractor interface {
	// FileTypes returns the file types this extractor handles.
	FileTypes() []domain.FileType

	// Extract returns the text of raw.
	// Unparsable content returns domain.ErrCorruptFile.
	Extract(ctx context.Context, raw *domain.RawFile) (*domain.Extraction, error)
}

// ExtractorRegistry selects the extractor for a file type.
type ExtractorRegistry interface {
	// Extract dispatches raw to the extractor for raw.FileType.
	// Returns domain.ErrUnsupportedFormat when none is registered.
	Extract(ctx context.Context, raw *domain.RawFile) (*domain.Extraction, error)

	// Register adds an extractor for each of its file types.
	Register(extractor Extractor)

	// SupportedFileTypes returns all file types that can be extracted.
	SupportedFileTypes() []domain.FileType
}

// Chunker splits text into overlapping segments.
type Chunker interface {
	// Split returns the segments of text. Empty text yields no segments.
	Split(text string) ([]domain.Segment, error)

	// ChunkSize returns the maximum segment length in runes.
	ChunkSize() int

	// Overlap returns the configured overlap in runes.
	Overlap() int
}
