package chunker

import (
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/chunker/langchain"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// FromSettings builds the chunker selected by settings.Strategy.
func FromSettings(settings domain.ChunkerSettings) (driven.Chunker, error) {
	switch settings.Strategy {
	case domain.ChunkerRecursive, "":
		return New(WithChunkSize(settings.ChunkSize), WithOverlap(settings.ChunkOverlap))
	case domain.ChunkerLangchain:
		return langchain.New(settings.ChunkSize, settings.ChunkOverlap)
	default:
		return nil, fmt.Errorf("%w: unknown chunker strategy %q", domain.ErrInvalidConfiguration, settings.Strategy)
	}
}
