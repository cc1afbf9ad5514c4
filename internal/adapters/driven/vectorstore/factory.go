// Package vectorstore selects the driven.VectorStore backend from settings.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/vectorstore/chroma"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/vectorstore/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/vectorstore/qdrant"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// New opens the backend named by settings.Backend.
//
// The sqlite backend shares db unless settings.Path names a separate file, in
// which case the returned store owns and closes that database. It records
// embeddingModel with the collection and refuses to mix models. Open failures
// are fatal at startup and wrap domain.ErrVectorStore.
func New(
	ctx context.Context, settings domain.VectorStoreSettings, embeddingModel string, db *sqlite.Store,
) (driven.VectorStore, error) {
	logger.Debug("Opening %s vector store (collection %q)", settings.Backend, settings.Collection)

	switch settings.Backend {
	case domain.VectorBackendMemory:
		return memory.New(), nil

	case domain.VectorBackendSQLite, "":
		if settings.Path != "" {
			own, err := sqlite.Open(settings.Path)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrVectorStore, err)
			}
			vs := own.VectorStore(settings.Collection, sqlite.WithEmbeddingModel(embeddingModel))
			return &ownedStore{VectorStore: vs, db: own}, nil
		}
		if db == nil {
			return nil, fmt.Errorf("%w: sqlite vector store requires a database", domain.ErrInvalidConfiguration)
		}
		return db.VectorStore(settings.Collection, sqlite.WithEmbeddingModel(embeddingModel)), nil

	case domain.VectorBackendChroma:
		store, err := chroma.New(ctx, chroma.Config{
			URL:        settings.URL,
			APIKey:     settings.APIKey,
			Collection: settings.Collection,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case domain.VectorBackendQdrant:
		store, err := qdrant.New(ctx, qdrant.Config{
			URL:        settings.URL,
			APIKey:     settings.APIKey,
			Collection: settings.Collection,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("%w: unknown vector store backend %q", domain.ErrInvalidConfiguration, settings.Backend)
	}
}

// ownedStore closes the database it was opened from.
type ownedStore struct {
	driven.VectorStore
	db *sqlite.Store
}

func (s *ownedStore) Close() error {
	return s.db.Close()
}
