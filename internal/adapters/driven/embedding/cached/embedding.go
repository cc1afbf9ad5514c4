// Package cached wraps an embedding service with a content-addressed cache.
package cached

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	kindDocument = "doc"
	kindQuery    = "query"
)

// EmbeddingService serves repeated texts from cache and embeds only misses.
// Cache failures are logged and fall through to the wrapped service.
type EmbeddingService struct {
	driven.EmbeddingService
	cache driven.EmbeddingCache
}

// New wraps inner with cache.
func New(inner driven.EmbeddingService, cache driven.EmbeddingCache) *EmbeddingService {
	return &EmbeddingService{EmbeddingService: inner, cache: cache}
}

// Key returns the cache key for a text embedded by model in the given direction.
func Key(model, kind, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// EmbedDocuments returns cached vectors where present and embeds the rest in one call.
func (s *EmbeddingService) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string

	model := s.ModelName()
	for i, t := range texts {
		keys[i] = Key(model, kindDocument, t)
		if v, ok := s.get(ctx, keys[i]); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := s.EmbeddingService.EmbedDocuments(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vectors[j]
		s.put(ctx, keys[i], vectors[j])
	}
	logger.Debug("embedding cache: %d hits, %d misses", len(texts)-len(missTexts), len(missTexts))
	return out, nil
}

// EmbedQuery returns a cached query vector or embeds and stores it.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := Key(s.ModelName(), kindQuery, text)
	if v, ok := s.get(ctx, key); ok {
		return v, nil
	}
	v, err := s.EmbeddingService.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	s.put(ctx, key, v)
	return v, nil
}

func (s *EmbeddingService) get(ctx context.Context, key string) ([]float32, bool) {
	v, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("embedding cache read failed: %v", err)
		return nil, false
	}
	return v, ok
}

func (s *EmbeddingService) put(ctx context.Context, key string, v []float32) {
	if err := s.cache.Put(ctx, key, v); err != nil {
		logger.Warn("embedding cache write failed: %v", err)
	}
}
