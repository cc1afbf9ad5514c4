package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DocumentService manages uploaded files.
type DocumentService interface {
	// IngestFile extracts and ingests an uploaded file.
	IngestFile(ctx context.Context, req IngestFileRequest) (*domain.IngestResult, error)

	// List returns documents matching filter.
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// GetContent returns the document text reconstructed from its chunks.
	GetContent(ctx context.Context, documentID string) (string, error)

	// Search performs semantic retrieval without generation.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}

// IngestFileRequest is an uploaded file with user metadata.
type IngestFileRequest struct {
	// Filename is the name supplied by the client. It is sanitised before use.
	Filename string

	// Content is the raw file bytes.
	Content []byte

	// DocumentID replaces an existing document when set.
	DocumentID string

	Tags        []string
	Description string
}
