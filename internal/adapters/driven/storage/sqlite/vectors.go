package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// vectorStore implements driven.VectorStore over the vectors table.
// Ranking is brute-force cosine similarity in Go.
type vectorStore struct {
	store      *Store
	collection string
	model      string
}

var _ driven.VectorStore = (*vectorStore)(nil)

// VectorOption configures a vector store returned by Store.VectorStore.
type VectorOption func(*vectorStore)

// WithEmbeddingModel labels the vectors written through the store with the
// embedding model that produced them. The first upsert records the label and
// later upserts and searches under another label fail with
// domain.ErrModelMismatch.
func WithEmbeddingModel(label string) VectorOption {
	return func(s *vectorStore) {
		s.model = label
	}
}

// collectionInfo is a row of the collections table. The zero value means
// nothing was stored yet.
type collectionInfo struct {
	dimension int
	model     string
}

// Upsert inserts or replaces records in one transaction.
// The whole batch is rejected when any vector has the wrong dimension.
func (s *vectorStore) Upsert(ctx context.Context, records []driven.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", domain.ErrVectorStore, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	info, err := s.info(ctx, tx)
	if err != nil {
		return err
	}
	if err := domain.CheckModel(info.model, s.model); err != nil {
		return err
	}
	dim := info.dimension

	want := dim
	if want == 0 {
		want = len(records[0].Vector)
	}
	for i := range records {
		if len(records[i].Vector) == 0 {
			return fmt.Errorf("%w: empty vector for chunk %s", domain.ErrVectorStore, records[i].ChunkID)
		}
		if err := domain.CheckDimensions(want, len(records[i].Vector)); err != nil {
			return err
		}
	}

	switch {
	case dim == 0:
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO collections (name, dimension, model) VALUES (?, ?, ?)",
			s.collection, want, s.model); err != nil {
			return fmt.Errorf("%w: recording dimension: %w", domain.ErrVectorStore, err)
		}
	case info.model == "" && s.model != "":
		if _, err := tx.ExecContext(ctx,
			"UPDATE collections SET model = ? WHERE name = ?", s.model, s.collection); err != nil {
			return fmt.Errorf("%w: recording model: %w", domain.ErrVectorStore, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (collection, chunk_id, document_id, filename, position, content, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			filename = excluded.filename,
			position = excluded.position,
			content = excluded.content,
			vector = excluded.vector
	`)
	if err != nil {
		return fmt.Errorf("%w: preparing upsert: %w", domain.ErrVectorStore, err)
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		if _, err := stmt.ExecContext(ctx, s.collection, r.ChunkID, r.DocumentID, r.Filename,
			r.Position, r.Content, float32SliceToBytes(r.Vector)); err != nil {
			return fmt.Errorf("%w: upserting %s: %w", domain.ErrVectorStore, r.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing upsert: %w", domain.ErrVectorStore, err)
	}
	return nil
}

// SimilaritySearch scans the collection, optionally restricted to filter's documents.
func (s *vectorStore) SimilaritySearch(
	ctx context.Context,
	query []float32,
	k int,
	filter driven.VectorFilter,
) ([]driven.VectorHit, error) {
	if k <= 0 {
		return []driven.VectorHit{}, nil
	}

	info, err := s.info(ctx, s.store.db)
	if err != nil {
		return nil, err
	}
	dim := info.dimension
	if dim == 0 {
		return []driven.VectorHit{}, nil
	}
	if err := domain.CheckModel(info.model, s.model); err != nil {
		return nil, err
	}
	if err := domain.CheckDimensions(dim, len(query)); err != nil {
		return nil, err
	}

	q := `SELECT chunk_id, document_id, filename, position, content, vector
		FROM vectors WHERE collection = ?`
	args := []any{s.collection}
	if len(filter.DocumentIDs) > 0 {
		q += " AND document_id IN (" + placeholders(len(filter.DocumentIDs)) + ")"
		for _, id := range filter.DocumentIDs {
			args = append(args, id)
		}
	}

	rows, err := s.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying vectors: %w", domain.ErrVectorStore, err)
	}
	defer rows.Close()

	hits := []driven.VectorHit{}
	for rows.Next() {
		var hit driven.VectorHit
		var blob []byte
		if err := rows.Scan(&hit.ChunkID, &hit.DocumentID, &hit.Filename,
			&hit.Position, &hit.Content, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning vector: %w", domain.ErrVectorStore, err)
		}
		vec := bytesToFloat32Slice(blob)
		if len(vec) != dim {
			return nil, fmt.Errorf("%w: corrupt vector for chunk %s", domain.ErrVectorStore, hit.ChunkID)
		}
		hit.Score = domain.CosineSimilarity(query, vec)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating vectors: %w", domain.ErrVectorStore, err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes records by chunk ID in a single statement.
func (s *vectorStore) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	args := make([]any, 0, len(chunkIDs)+1)
	args = append(args, s.collection)
	for _, id := range chunkIDs {
		args = append(args, id)
	}
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM vectors WHERE collection = ? AND chunk_id IN ("+placeholders(len(chunkIDs))+")", args...)
	if err != nil {
		return fmt.Errorf("%w: deleting vectors: %w", domain.ErrVectorStore, err)
	}
	return nil
}

// DeleteByDocument removes every record of a document in a single statement.
func (s *vectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM vectors WHERE collection = ? AND document_id = ?", s.collection, documentID)
	if err != nil {
		return fmt.Errorf("%w: deleting document vectors: %w", domain.ErrVectorStore, err)
	}
	return nil
}

// Count returns the number of records in the collection.
func (s *vectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vectors WHERE collection = ?", s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: counting vectors: %w", domain.ErrVectorStore, err)
	}
	return n, nil
}

// Reset deletes the collection's vectors and its collections row in one
// transaction, releasing both the dimension and the model label.
func (s *vectorStore) Reset(ctx context.Context) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", domain.ErrVectorStore, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM vectors WHERE collection = ?", s.collection); err != nil {
		return fmt.Errorf("%w: deleting vectors: %w", domain.ErrVectorStore, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", s.collection); err != nil {
		return fmt.Errorf("%w: deleting collection: %w", domain.ErrVectorStore, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing reset: %w", domain.ErrVectorStore, err)
	}
	return nil
}

// Close is a no-op; the owning Store closes the database.
func (s *vectorStore) Close() error {
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// info reads the collection's row, the zero value when nothing was stored yet.
func (s *vectorStore) info(ctx context.Context, q querier) (collectionInfo, error) {
	var info collectionInfo
	err := q.QueryRowContext(ctx,
		"SELECT dimension, model FROM collections WHERE name = ?", s.collection).Scan(&info.dimension, &info.model)
	if errors.Is(err, sql.ErrNoRows) {
		return collectionInfo{}, nil
	}
	if err != nil {
		return collectionInfo{}, fmt.Errorf("%w: reading collection: %w", domain.ErrVectorStore, err)
	}
	return info, nil
}
