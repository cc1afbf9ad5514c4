package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// embeddingCache implements driven.EmbeddingCache.
type embeddingCache struct {
	store *Store
}

var _ driven.EmbeddingCache = (*embeddingCache)(nil)

// Get returns the cached vector for key.
func (c *embeddingCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	var blob []byte
	err := c.store.db.QueryRowContext(ctx, "SELECT vector FROM embedding_cache WHERE key = ?", key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading embedding cache: %w", err)
	}
	return bytesToFloat32Slice(blob), true, nil
}

// Put stores vector under key.
func (c *embeddingCache) Put(ctx context.Context, key string, vector []float32) error {
	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (key, vector) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET vector = excluded.vector
	`, key, float32SliceToBytes(vector))
	if err != nil {
		return fmt.Errorf("writing embedding cache: %w", err)
	}
	return nil
}
