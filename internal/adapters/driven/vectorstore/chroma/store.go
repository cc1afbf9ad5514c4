// Package chroma provides a vector store backed by a Chroma server.
package chroma

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// DefaultURL is the local Chroma server address.
const DefaultURL = "http://localhost:8000"

// Metadata keys stored alongside each chunk.
const (
	keyDocumentID = "document_id"
	keyFilename   = "filename"
	keyPosition   = "position"
)

// Config holds connection settings for the Chroma store.
type Config struct {
	// URL is the Chroma server base URL (default: http://localhost:8000).
	URL string

	// APIKey is sent as the x-chroma-token header when set.
	APIKey string

	// Collection is the collection name.
	Collection string
}

// Store keeps chunk vectors in a Chroma collection using the cosine HNSW space.
// Chroma enforces the collection dimension server-side; the store also checks
// locally once the dimension is known.
type Store struct {
	client chromago.Client
	name   string

	mu         sync.RWMutex
	collection chromago.Collection
	dimension  int
}

// New connects to Chroma and gets or creates the collection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Collection == "" {
		cfg.Collection = domain.DefaultCollection
	}

	opts := []chromago.ClientOption{chromago.WithBaseURL(cfg.URL)}
	if cfg.APIKey != "" {
		opts = append(opts, chromago.WithDefaultHeaders(map[string]string{"x-chroma-token": cfg.APIKey}))
	}
	client, err := chromago.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: chroma client: %w", domain.ErrVectorStore, err)
	}

	collection, err := client.GetOrCreateCollection(ctx, cfg.Collection, createOptions()...)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: chroma collection %s: %w", domain.ErrVectorStore, cfg.Collection, err)
	}
	logger.Debug("chroma: using collection %s at %s", cfg.Collection, cfg.URL)

	return &Store{client: client, name: cfg.Collection, collection: collection}, nil
}

func createOptions() []chromago.CreateCollectionOption {
	return []chromago.CreateCollectionOption{
		chromago.WithHNSWSpaceCreate(embeddings.COSINE),
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("created_by", "sercha-rag"),
			),
		),
	}
}

func (s *Store) coll() chromago.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection
}

// Upsert writes records with their text and citation metadata.
func (s *Store) Upsert(ctx context.Context, records []driven.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.checkBatch(records); err != nil {
		return err
	}

	ids := make([]chromago.DocumentID, len(records))
	texts := make([]string, len(records))
	vectors := make([]embeddings.Embedding, len(records))
	metadatas := make([]chromago.DocumentMetadata, len(records))
	for i, r := range records {
		ids[i] = chromago.DocumentID(r.ChunkID)
		texts[i] = r.Content
		vectors[i] = embeddings.NewEmbeddingFromFloat32(r.Vector)
		metadatas[i] = chromago.NewDocumentMetadata(
			chromago.NewStringAttribute(keyDocumentID, r.DocumentID),
			chromago.NewStringAttribute(keyFilename, r.Filename),
			chromago.NewIntAttribute(keyPosition, int64(r.Position)),
		)
	}

	err := s.coll().Upsert(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(vectors...),
		chromago.WithMetadatas(metadatas...),
	)
	if err != nil {
		return wrap("upsert", err)
	}

	s.mu.Lock()
	if s.dimension == 0 {
		s.dimension = len(records[0].Vector)
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) checkBatch(records []driven.VectorRecord) error {
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()
	if dim == 0 {
		dim = len(records[0].Vector)
	}
	for _, r := range records {
		if err := domain.CheckDimensions(dim, len(r.Vector)); err != nil {
			return err
		}
	}
	return nil
}

// SimilaritySearch queries the collection with an optional document_id where filter.
func (s *Store) SimilaritySearch(ctx context.Context, query []float32, k int, filter driven.VectorFilter) ([]driven.VectorHit, error) {
	if k <= 0 {
		return []driven.VectorHit{}, nil
	}
	s.mu.RLock()
	dim := s.dimension
	collection := s.collection
	s.mu.RUnlock()
	if err := domain.CheckDimensions(dim, len(query)); err != nil {
		return nil, err
	}

	count, err := collection.Count(ctx)
	if err != nil {
		return nil, wrap("count", err)
	}
	if count == 0 {
		return []driven.VectorHit{}, nil
	}
	if k > count {
		k = count
	}

	opts := []chromago.CollectionQueryOption{
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(query)),
		chromago.WithNResults(k),
		chromago.WithIncludeQuery(chromago.IncludeDocuments, chromago.IncludeMetadatas, chromago.IncludeDistances),
	}
	if len(filter.DocumentIDs) > 0 {
		opts = append(opts, chromago.WithWhereQuery(chromago.InString(keyDocumentID, filter.DocumentIDs...)))
	}

	result, err := collection.Query(ctx, opts...)
	if err != nil {
		return nil, wrap("query", err)
	}

	idGroups := result.GetIDGroups()
	if len(idGroups) == 0 {
		return []driven.VectorHit{}, nil
	}
	docs := result.GetDocumentsGroups()
	metas := result.GetMetadatasGroups()
	dists := result.GetDistancesGroups()

	hits := make([]driven.VectorHit, 0, len(idGroups[0]))
	for i, id := range idGroups[0] {
		hit := driven.VectorHit{ChunkID: string(id)}
		if len(docs) > 0 && i < len(docs[0]) && docs[0][i] != nil {
			hit.Content = docs[0][i].ContentString()
		}
		if len(metas) > 0 && i < len(metas[0]) {
			applyMetadata(&hit, metas[0][i])
		}
		if len(dists) > 0 && i < len(dists[0]) {
			hit.Score = 1 - float64(dists[0][i])
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// applyMetadata copies citation fields from a Chroma metadata value.
func applyMetadata(hit *driven.VectorHit, metadata any) {
	if metadata == nil {
		return
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		logger.Warn("chroma: could not marshal metadata for %s: %v", hit.ChunkID, err)
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		logger.Warn("chroma: could not unmarshal metadata for %s: %v", hit.ChunkID, err)
		return
	}
	hit.DocumentID, _ = fields[keyDocumentID].(string)
	hit.Filename, _ = fields[keyFilename].(string)
	if pos, ok := fields[keyPosition].(float64); ok {
		hit.Position = int(pos)
	}
}

// Delete removes records by chunk ID.
func (s *Store) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	ids := make([]chromago.DocumentID, len(chunkIDs))
	for i, id := range chunkIDs {
		ids[i] = chromago.DocumentID(id)
	}
	if err := s.coll().Delete(ctx, chromago.WithIDsDelete(ids...)); err != nil {
		return wrap("delete", err)
	}
	return nil
}

// DeleteByDocument removes every record of a document with one where-filtered request.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := s.coll().Delete(ctx, chromago.WithWhereDelete(chromago.EqString(keyDocumentID, documentID))); err != nil {
		return wrap("delete by document", err)
	}
	return nil
}

// Count returns the number of records in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.coll().Count(ctx)
	if err != nil {
		return 0, wrap("count", err)
	}
	return n, nil
}

// Reset drops the collection on the server and recreates it empty, so the
// next upsert fixes a new dimension.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.DeleteCollection(ctx, s.name); err != nil {
		return wrap("delete collection", err)
	}
	collection, err := s.client.GetOrCreateCollection(ctx, s.name, createOptions()...)
	if err != nil {
		return wrap("recreate collection", err)
	}
	s.collection = collection
	s.dimension = 0
	logger.Info("chroma: reset collection %s", s.name)
	return nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// wrap classifies a Chroma error, surfacing server-side dimension rejections.
func wrap(op string, err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "dimension") {
		return fmt.Errorf("%w: %w: chroma %s: %w", domain.ErrVectorStore, domain.ErrDimensionMismatch, op, err)
	}
	return fmt.Errorf("%w: chroma %s: %w", domain.ErrVectorStore, op, err)
}
