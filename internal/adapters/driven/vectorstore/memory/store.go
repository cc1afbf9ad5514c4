// Package memory provides an in-process vector store ranked by brute-force cosine similarity.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Store keeps vector records in a map guarded by a read-write mutex.
type Store struct {
	mu        sync.RWMutex
	records   map[string]driven.VectorRecord
	dimension int
}

// New creates an empty memory vector store.
func New() *Store {
	return &Store{records: make(map[string]driven.VectorRecord)}
}

// Upsert inserts or replaces records. A batch with any mismatched vector is rejected whole.
func (s *Store) Upsert(ctx context.Context, records []driven.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	if dim == 0 {
		dim = len(records[0].Vector)
	}
	for _, r := range records {
		if len(r.Vector) == 0 {
			return domain.CheckDimensions(dim, 0)
		}
		if err := domain.CheckDimensions(dim, len(r.Vector)); err != nil {
			return err
		}
	}

	s.dimension = dim
	for _, r := range records {
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		r.Vector = vec
		s.records[r.ChunkID] = r
	}
	return nil
}

// SimilaritySearch ranks every record that passes the filter.
func (s *Store) SimilaritySearch(ctx context.Context, query []float32, k int, filter driven.VectorFilter) ([]driven.VectorHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 || k <= 0 {
		return []driven.VectorHit{}, nil
	}
	if err := domain.CheckDimensions(s.dimension, len(query)); err != nil {
		return nil, err
	}

	hits := make([]driven.VectorHit, 0, len(s.records))
	for _, r := range s.records {
		if !filter.Allows(r.DocumentID) {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    r.ChunkID,
			DocumentID: r.DocumentID,
			Filename:   r.Filename,
			Position:   r.Position,
			Content:    r.Content,
			Score:      domain.CosineSimilarity(query, r.Vector),
		})
	}

	SortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// SortHits orders hits by descending score, breaking ties by chunk ID.
func SortHits(hits []driven.VectorHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}

// Delete removes records by chunk ID.
func (s *Store) Delete(_ context.Context, chunkIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range chunkIDs {
		delete(s.records, id)
	}
	return nil
}

// DeleteByDocument removes every record of a document under a single write lock.
func (s *Store) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.records {
		if r.DocumentID == documentID {
			delete(s.records, id)
		}
	}
	return nil
}

// Count returns the number of stored records.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Reset drops every record and the fixed dimension.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]driven.VectorRecord)
	s.dimension = 0
	return nil
}

// Dimension returns the collection dimension, zero while empty.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Close releases resources.
func (s *Store) Close() error {
	return nil
}
