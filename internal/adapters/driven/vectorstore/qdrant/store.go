// Package qdrant provides a vector store backed by a Qdrant server over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// DefaultPort is the Qdrant gRPC port.
const DefaultPort = 6334

// Payload keys.
const (
	keyChunkID    = "chunk_id"
	keyDocumentID = "document_id"
	keyFilename   = "filename"
	keyPosition   = "position"
	keyContent    = "content"
)

// chunkNamespace derives stable point UUIDs from chunk IDs that are not UUIDs themselves.
var chunkNamespace = uuid.MustParse("6f1c8a52-3b7e-4d0a-9c55-2f4e1d9b7a13")

// Config holds connection settings for the Qdrant store.
type Config struct {
	// URL is host[:port] or a URL such as http://localhost:6334.
	URL string

	// APIKey is sent with every request when set.
	APIKey string

	// Collection is the collection name.
	Collection string
}

// Store keeps chunk vectors in a Qdrant collection with cosine distance.
// The collection is created on first upsert, sized by the first vector.
type Store struct {
	client     *qdrant.Client
	collection string

	mu        sync.RWMutex
	dimension int
}

// New connects to Qdrant and reads the collection dimension if it exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	host, port, useTLS, err := parseAddress(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant url: %w", domain.ErrInvalidConfiguration, err)
	}
	if cfg.Collection == "" {
		cfg.Collection = domain.DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant connect: %w", domain.ErrVectorStore, err)
	}

	s := &Store{client: client, collection: cfg.Collection}

	exists, err := client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: qdrant: %w", domain.ErrVectorStore, err)
	}
	if exists {
		info, err := client.GetCollectionInfo(ctx, cfg.Collection)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("%w: qdrant collection info: %w", domain.ErrVectorStore, err)
		}
		s.dimension = int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
		logger.Debug("qdrant: collection %s exists with dimension %d", cfg.Collection, s.dimension)
	}
	return s, nil
}

func parseAddress(raw string) (host string, port int, useTLS bool, err error) {
	if raw == "" {
		return "localhost", DefaultPort, false, nil
	}
	if u, perr := url.Parse(raw); perr == nil && u.Host != "" {
		useTLS = u.Scheme == "https"
		raw = u.Host
	}
	h, p, serr := net.SplitHostPort(raw)
	if serr != nil {
		return raw, DefaultPort, useTLS, nil
	}
	port, err = strconv.Atoi(p)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid port %q", p)
	}
	return h, port, useTLS, nil
}

// PointID maps a chunk ID onto a Qdrant point ID.
func PointID(chunkID string) string {
	if _, err := uuid.Parse(chunkID); err == nil {
		return chunkID
	}
	return uuid.NewSHA1(chunkNamespace, []byte(chunkID)).String()
}

func (s *Store) ensureCollection(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 {
		return domain.CheckDimensions(s.dimension, dim)
	}
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(dim),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: create collection: %w", domain.ErrVectorStore, err)
	}
	s.dimension = dim
	return nil
}

// Upsert writes records as points with their citation metadata as payload.
func (s *Store) Upsert(ctx context.Context, records []driven.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	dim := len(records[0].Vector)
	for _, r := range records {
		if err := domain.CheckDimensions(dim, len(r.Vector)); err != nil {
			return err
		}
	}
	if err := s.ensureCollection(ctx, dim); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(r.ChunkID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				keyChunkID:    r.ChunkID,
				keyDocumentID: r.DocumentID,
				keyFilename:   r.Filename,
				keyPosition:   r.Position,
				keyContent:    r.Content,
			}),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant upsert: %w", domain.ErrVectorStore, err)
	}
	return nil
}

// SimilaritySearch queries the collection with an optional document_id pre-filter.
func (s *Store) SimilaritySearch(ctx context.Context, query []float32, k int, filter driven.VectorFilter) ([]driven.VectorHit, error) {
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()

	if dim == 0 || k <= 0 {
		return []driven.VectorHit{}, nil
	}
	if err := domain.CheckDimensions(dim, len(query)); err != nil {
		return nil, err
	}

	limit := uint64(k)
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if f := documentFilter(filter); f != nil {
		req.Filter = f
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant query: %w", domain.ErrVectorStore, err)
	}

	hits := make([]driven.VectorHit, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		hits = append(hits, driven.VectorHit{
			ChunkID:    payload[keyChunkID].GetStringValue(),
			DocumentID: payload[keyDocumentID].GetStringValue(),
			Filename:   payload[keyFilename].GetStringValue(),
			Position:   int(payload[keyPosition].GetIntegerValue()),
			Content:    payload[keyContent].GetStringValue(),
			Score:      float64(p.GetScore()),
		})
	}
	return hits, nil
}

func documentFilter(filter driven.VectorFilter) *qdrant.Filter {
	if len(filter.DocumentIDs) == 0 {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatchKeywords(keyDocumentID, filter.DocumentIDs...)},
	}
}

// Delete removes points by chunk ID.
func (s *Store) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 || !s.hasCollection() {
		return nil
	}
	ids := make([]*qdrant.PointId, len(chunkIDs))
	for i, id := range chunkIDs {
		ids[i] = qdrant.NewIDUUID(PointID(id))
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(ids...),
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant delete: %w", domain.ErrVectorStore, err)
	}
	return nil
}

// DeleteByDocument removes all points of a document with one filtered request.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	if !s.hasCollection() {
		return nil
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(keyDocumentID, documentID)},
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant delete by document: %w", domain.ErrVectorStore, err)
	}
	return nil
}

// Count returns the exact number of points.
func (s *Store) Count(ctx context.Context) (int, error) {
	if !s.hasCollection() {
		return 0, nil
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: qdrant count: %w", domain.ErrVectorStore, err)
	}
	return int(n), nil
}

// Reset drops the collection. The next upsert recreates it sized by its own
// vectors.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("%w: qdrant delete collection: %w", domain.ErrVectorStore, err)
	}
	s.dimension = 0
	logger.Info("qdrant: reset collection %s", s.collection)
	return nil
}

func (s *Store) hasCollection() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension != 0
}

// Close closes the gRPC connections.
func (s *Store) Close() error {
	return s.client.Close()
}
