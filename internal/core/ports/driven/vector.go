package driven

import "context"

// VectorStore persists chunk vectors and ranks them by cosine similarity.
// Implementations must be safe for concurrent readers.
type VectorStore interface {
	// Upsert inserts or replaces records by ChunkID.
	// The first vector ever stored fixes the collection dimension.
	Upsert(ctx context.Context, records []VectorRecord) error

	// SimilaritySearch returns at most k hits ordered by non-increasing score.
	// The filter is applied before ranking.
	SimilaritySearch(ctx context.Context, query []float32, k int, filter VectorFilter) ([]VectorHit, error)

	// Delete removes records by chunk ID. Missing IDs are ignored.
	Delete(ctx context.Context, chunkIDs []string) error

	// DeleteByDocument removes every record of a document in one mutation.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Reset drops every record and forgets the collection dimension, so the
	// next Upsert may fix a new one.
	Reset(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// VectorRecord is a chunk with its embedding and citation metadata.
type VectorRecord struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Position   int
	Content    string
	Vector     []float32
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Position   int
	Content    string

	// Score is the cosine similarity, higher is more relevant.
	Score float64
}

// VectorFilter restricts a search.
type VectorFilter struct {
	// DocumentIDs limits results to these documents when non-empty.
	DocumentIDs []string
}

// Allows reports whether documentID passes the filter.
func (f VectorFilter) Allows(documentID string) bool {
	if len(f.DocumentIDs) == 0 {
		return true
	}
	for _, id := range f.DocumentIDs {
		if id == documentID {
			return true
		}
	}
	return false
}
