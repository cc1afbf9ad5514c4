package chroma

import (
	"context"
	"errors"
	"testing"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

func TestWrap(t *testing.T) {
	err := wrap("upsert", errors.New("Collection expecting embedding with dimension of 768, got 384"))
	assert.ErrorIs(t, err, domain.ErrVectorStore)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	err = wrap("query", errors.New("connection refused"))
	assert.ErrorIs(t, err, domain.ErrVectorStore)
	assert.NotErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestApplyMetadata(t *testing.T) {
	hit := driven.VectorHit{ChunkID: "c1"}
	applyMetadata(&hit, map[string]any{
		keyDocumentID: "doc-1",
		keyFilename:   "notes.md",
		keyPosition:   3,
	})

	assert.Equal(t, "doc-1", hit.DocumentID)
	assert.Equal(t, "notes.md", hit.Filename)
	assert.Equal(t, 3, hit.Position)
}

func TestApplyMetadata_Nil(t *testing.T) {
	hit := driven.VectorHit{ChunkID: "c1"}
	applyMetadata(&hit, nil)
	assert.Empty(t, hit.DocumentID)
}

func TestCheckBatch(t *testing.T) {
	s := &Store{dimension: 3}
	err := s.checkBatch([]driven.VectorRecord{{ChunkID: "a", Vector: []float32{1, 2}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	s = &Store{}
	err = s.checkBatch([]driven.VectorRecord{
		{ChunkID: "a", Vector: []float32{1, 2}},
		{ChunkID: "b", Vector: []float32{1, 2}},
	})
	assert.NoError(t, err)
}

// fakeClient records collection lifecycle calls. Unused methods panic via the
// nil embedded interface.
type fakeClient struct {
	chromago.Client
	deleteErr error
	deleted   []string
	created   []string
}

func (c *fakeClient) DeleteCollection(_ context.Context, name string, _ ...chromago.DeleteCollectionOption) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, name)
	return nil
}

func (c *fakeClient) GetOrCreateCollection(
	_ context.Context, name string, _ ...chromago.CreateCollectionOption,
) (chromago.Collection, error) {
	c.created = append(c.created, name)
	return &fakeCollection{name: name}, nil
}

type fakeCollection struct {
	chromago.Collection
	name string
}

func TestStore_Reset(t *testing.T) {
	client := &fakeClient{}
	old := &fakeCollection{name: "docs"}
	s := &Store{client: client, name: "docs", collection: old, dimension: 768}

	require.NoError(t, s.Reset(context.Background()))
	assert.Equal(t, []string{"docs"}, client.deleted)
	assert.Equal(t, []string{"docs"}, client.created)
	assert.Zero(t, s.dimension)
	assert.NotSame(t, old, s.coll())

	// A new dimension is accepted after the reset.
	assert.NoError(t, s.checkBatch([]driven.VectorRecord{{ChunkID: "a", Vector: []float32{1, 2, 3}}}))
}

func TestStore_ResetFailureKeepsCollection(t *testing.T) {
	client := &fakeClient{deleteErr: errors.New("connection refused")}
	old := &fakeCollection{name: "docs"}
	s := &Store{client: client, name: "docs", collection: old, dimension: 768}

	err := s.Reset(context.Background())
	assert.ErrorIs(t, err, domain.ErrVectorStore)
	assert.Equal(t, 768, s.dimension)
	assert.Same(t, old, s.coll())
	assert.Empty(t, client.created)
}
