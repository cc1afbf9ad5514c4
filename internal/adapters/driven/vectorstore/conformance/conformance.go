// Package conformance holds behaviour tests shared by every vector store backend.
package conformance

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Factory returns a fresh, empty store. It is called once per subtest.
type Factory func(t *testing.T) driven.VectorStore

func record(chunkID, docID string, position int, vec ...float32) driven.VectorRecord {
	return driven.VectorRecord{
		ChunkID:    chunkID,
		DocumentID: docID,
		Filename:   docID + ".txt",
		Position:   position,
		Content:    "content of " + chunkID,
		Vector:     vec,
	}
}

// Run exercises the driven.VectorStore contract against the store built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		store := newStore(t)
		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		hits, err := store.SimilaritySearch(ctx, []float32{1, 0, 0}, 3, driven.VectorFilter{})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("ranks by cosine similarity", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Upsert(ctx, []driven.VectorRecord{
			record("c1", "d1", 0, 1, 0, 0),
			record("c2", "d1", 1, 0.7, 0.7, 0),
			record("c3", "d2", 0, 0, 0, 1),
		}))

		hits, err := store.SimilaritySearch(ctx, []float32{1, 0, 0}, 2, driven.VectorFilter{})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "c1", hits[0].ChunkID)
		assert.Equal(t, "c2", hits[1].ChunkID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-4)
		assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
		assert.Equal(t, "d1", hits[0].DocumentID)
		assert.Equal(t, "d1.txt", hits[0].Filename)
		assert.Equal(t, "content of c1", hits[0].Content)
		assert.Equal(t, 1, hits[1].Position)
	})

	t.Run("k larger than store", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Upsert(ctx, []driven.VectorRecord{record("c1", "d1", 0, 1, 0)}))

		hits, err := store.SimilaritySearch(ctx, []float32{1, 0}, 10, driven.VectorFilter{})
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("filter applied before ranking", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Upsert(ctx, []driven.VectorRecord{
			record("c1", "d1", 0, 1, 0),
			record("c2", "d1", 1, 0.9, 0.1),
			record("c3", "d2", 0, 0.1, 0.9),
		}))

		hits, err := store.SimilaritySearch(ctx, []float32{1, 0}, 1, driven.VectorFilter{DocumentIDs: []string{"d2"}})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "c3", hits[0].ChunkID)
	})

	t.Run("upsert replaces by chunk id", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Upsert(ctx, []driven.VectorRecord{record("c1", "d1", 0, 1, 0)}))
		updated := record("c1", "d1", 0, 0, 1)
		updated.Content = "new"
		require.NoError(t, store.Upsert(ctx, []driven.VectorRecord{updated}))

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		hits, err := store.SimilaritySearch(ctx, []float32{0, 1}, 1, driven.VectorFilter{})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "new", hits[0].Content)
	})

	t.Run("delete ignores missing ids", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Upsert(ctx, []driven.VectorRecord{
			record("c1", "d1", 0, 1, 0),
			record("c2", "d1", 1, 0, 1),
		}))
		require.NoError(t, store.Delete(ctx, []string{"c1", "missing"}))

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("delete by document", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Upsert(ctx, []driven.VectorRecord{
			record("c1", "d1", 0, 1, 0),
			record("c2", "d1", 1, 0, 1),
			record("c3", "d2", 0, 1, 1),
		}))
		require.NoError(t, store.DeleteByDocument(ctx, "d1"))
		require.NoError(t, store.DeleteByDocument(ctx, "unknown"))

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		hits, err := store.SimilaritySearch(ctx, []float32{1, 0}, 5, driven.VectorFilter{})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "d2", hits[0].DocumentID)
	})

	t.Run("dimension fixed by first vector", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Upsert(ctx, []driven.VectorRecord{record("c1", "d1", 0, 1, 0, 0)}))

		err := store.Upsert(ctx, []driven.VectorRecord{record("c2", "d1", 1, 1, 0)})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
		assert.ErrorIs(t, err, domain.ErrVectorStore)

		_, err = store.SimilaritySearch(ctx, []float32{1, 0}, 1, driven.VectorFilter{})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("reset clears records and dimension", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Upsert(ctx, []driven.VectorRecord{
			record("c1", "d1", 0, 1, 0, 0, 0),
			record("c2", "d2", 0, 0, 1, 0, 0),
		}))

		require.NoError(t, store.Reset(ctx))
		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		require.NoError(t, store.Upsert(ctx, []driven.VectorRecord{record("c3", "d3", 0, 1, 0)}))
		hits, err := store.SimilaritySearch(ctx, []float32{1, 0}, 5, driven.VectorFilter{})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "c3", hits[0].ChunkID)

		err = store.Upsert(ctx, []driven.VectorRecord{record("c4", "d3", 1, 1, 0, 0, 0)})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("reset on empty store", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Reset(ctx))
		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("mixed batch rejected whole", func(t *testing.T) {
		store := newStore(t)
		err := store.Upsert(ctx, []driven.VectorRecord{
			record("c1", "d1", 0, 1, 0),
			record("c2", "d1", 1, 1, 0, 0),
		})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("concurrent readers", func(t *testing.T) {
		store := newStore(t)
		var records []driven.VectorRecord
		for i := 0; i < 20; i++ {
			records = append(records, record(fmt.Sprintf("c%02d", i), "d1", i, float32(i), 1))
		}
		require.NoError(t, store.Upsert(ctx, records))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				hits, err := store.SimilaritySearch(ctx, []float32{1, 1}, 5, driven.VectorFilter{})
				assert.NoError(t, err)
				assert.Len(t, hits, 5)
			}()
		}
		wg.Wait()
	})
}
