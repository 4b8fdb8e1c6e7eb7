package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// Embedding index operations

func upsertEmbeddingWithQuerier(ctx context.Context, q querier, rec *EmbeddingRecord) error {
	if err := rec.Course.Validate(); err != nil {
		return err
	}
	if len(rec.Vector) == 0 {
		return fmt.Errorf("course %s: empty vector", rec.Course.ID)
	}
	if err := checkEmbedderWithQuerier(ctx, q, rec.EmbedderID); err != nil {
		return err
	}

	categories, err := encodeCategories(rec.Course.Categories)
	if err != nil {
		return err
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	c := rec.Course
	_, err = q.ExecContext(ctx, `
		INSERT INTO course_embeddings (
			course_id, vector, dimension, embedder_id, content_hash,
			title, description, difficulty, duration, provider, categories, url, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(course_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			embedder_id = excluded.embedder_id,
			content_hash = excluded.content_hash,
			title = excluded.title,
			description = excluded.description,
			difficulty = excluded.difficulty,
			duration = excluded.duration,
			provider = excluded.provider,
			categories = excluded.categories,
			url = excluded.url,
			updated_at = excluded.updated_at
	`, c.ID, serializeVector(rec.Vector), len(rec.Vector), rec.EmbedderID, rec.ContentHash,
		c.Title, c.Description, string(c.Difficulty), c.Duration, c.Provider, categories, c.URL, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding for %s: %w", c.ID, err)
	}
	return nil
}

// checkEmbedderWithQuerier tags an untagged index with embedderID and rejects
// any other embedder afterwards
func checkEmbedderWithQuerier(ctx context.Context, q querier, embedderID string) error {
	if embedderID == "" {
		return fmt.Errorf("%w: embedding record has no embedder tag", types.ErrEmbedderMismatch)
	}
	current, err := getMeta(ctx, q, metaEmbedderID)
	if err != nil {
		return err
	}
	if current == "" {
		return setMeta(ctx, q, metaEmbedderID, embedderID)
	}
	if current != embedderID {
		return fmt.Errorf("%w: index built with %s, got %s", types.ErrEmbedderMismatch, current, embedderID)
	}
	return nil
}

// Upsert inserts or replaces an index entry
func (s *SQLiteStorage) Upsert(ctx context.Context, rec *EmbeddingRecord) error {
	return s.withTx(ctx, func(q querier) error {
		return upsertEmbeddingWithQuerier(ctx, q, rec)
	})
}

// UpsertBatch writes entries in a single transaction; one failure rolls back the batch
func (s *SQLiteStorage) UpsertBatch(ctx context.Context, recs []*EmbeddingRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(q querier) error {
		for _, rec := range recs {
			if err := upsertEmbeddingWithQuerier(ctx, q, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Query returns the k nearest entries to vector
func (s *SQLiteStorage) Query(ctx context.Context, vector []float32, k int, filter *IndexFilter) ([]IndexHit, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, types.ErrIndexEmpty
	}
	if k <= 0 {
		return []IndexHit{}, nil
	}
	return searchVector(ctx, s.rdb, vector, k, filter)
}

// Count returns the number of index entries
func (s *SQLiteStorage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.rdb.QueryRowContext(ctx, "SELECT COUNT(*) FROM course_embeddings").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}

// Delete removes the entry for a course
func (s *SQLiteStorage) Delete(ctx context.Context, courseID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM course_embeddings WHERE course_id = ?", courseID)
	if err != nil {
		return fmt.Errorf("failed to delete embedding %s: %w", courseID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ContentHash returns the content hash of an entry
func (s *SQLiteStorage) ContentHash(ctx context.Context, courseID string) (string, error) {
	var hash string
	err := s.rdb.QueryRowContext(ctx,
		"SELECT content_hash FROM course_embeddings WHERE course_id = ?", courseID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read content hash %s: %w", courseID, err)
	}
	return hash, nil
}

// ListCourseIDs returns the IDs of all index entries in order
func (s *SQLiteStorage) ListCourseIDs(ctx context.Context) ([]string, error) {
	rows, err := s.rdb.QueryContext(ctx, "SELECT course_id FROM course_embeddings ORDER BY course_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// EmbedderID returns the embedder tag of the index
func (s *SQLiteStorage) EmbedderID(ctx context.Context) (string, error) {
	return getMeta(ctx, s.rdb, metaEmbedderID)
}

// Reset removes all entries and the embedder tag
func (s *SQLiteStorage) Reset(ctx context.Context) error {
	return s.withTx(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, "DELETE FROM course_embeddings"); err != nil {
			return fmt.Errorf("failed to clear embeddings: %w", err)
		}
		if _, err := q.ExecContext(ctx, "DELETE FROM index_meta WHERE key = ?", metaEmbedderID); err != nil {
			return fmt.Errorf("failed to clear embedder tag: %w", err)
		}
		return nil
	})
}
