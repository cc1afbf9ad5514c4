package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// RAGService is the retrieval-augmented generation engine.
type RAGService interface {
	// Ingest chunks, embeds and stores extracted text.
	// Re-ingesting an existing document ID replaces its previous chunks.
	Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error)

	// Query answers a question from the stored documents.
	Query(ctx context.Context, question string, opts domain.QueryOptions) (*domain.QueryResult, error)

	// Summarize summarises a single stored document.
	Summarize(ctx context.Context, documentID string) (string, error)

	// DeleteDocument removes a document and all of its chunks.
	DeleteDocument(ctx context.Context, documentID string) error

	// UpdateMetadata changes a document's tags or description.
	UpdateMetadata(ctx context.Context, documentID string, update domain.MetadataUpdate) (*domain.Document, error)

	// Reset removes every document and releases the vector collection's
	// dimension. It returns the number of documents removed.
	Reset(ctx context.Context) (int, error)

	// Stats reports knowledge base totals and provider identity.
	Stats(ctx context.Context) (*domain.Stats, error)
}
