package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/skillcourse-mcp/pkg/types"
)

const testEmbedderID = "test/model/3"

func TestIndexQueryEmpty(t *testing.T) {
	storage := setupTestDB(t)

	_, err := storage.Query(context.Background(), []float32{1, 0, 0}, 5, nil)
	assert.ErrorIs(t, err, types.ErrIndexEmpty)
}

func TestIndexUpsertAndQuery(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.UpsertBatch(ctx, []*EmbeddingRecord{
		NewEmbeddingRecord(*testCourse("x", "X axis", "", types.DifficultyBeginner), []float32{1, 0, 0}, testEmbedderID),
		NewEmbeddingRecord(*testCourse("y", "Y axis", "", types.DifficultyAdvanced), []float32{0, 1, 0}, testEmbedderID),
		NewEmbeddingRecord(*testCourse("xy", "Diagonal", "", types.DifficultyBeginner), []float32{1, 1, 0}, testEmbedderID),
	}))

	n, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := storage.Query(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "x", hits[0].Course.ID)
	assert.InDelta(t, 0, hits[0].Distance, 1e-6)
	assert.Equal(t, "xy", hits[1].Course.ID)
	assert.Equal(t, "https://example.com/xy", hits[1].Course.URL)

	hits, err = storage.Query(ctx, []float32{1, 0, 0}, 10,
		&IndexFilter{Difficulties: []types.Difficulty{types.DifficultyAdvanced}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "y", hits[0].Course.ID)
	assert.InDelta(t, 50, SimilarityFromDistance(hits[0].Distance), 1e-4)

	hits, err = storage.Query(ctx, []float32{1, 0, 0}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndexEmbedderTag(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	course := *testCourse("c1", "Go", "", "")

	id, err := storage.EmbedderID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, storage.Upsert(ctx, NewEmbeddingRecord(course, []float32{1, 0, 0}, testEmbedderID)))
	id, err = storage.EmbedderID(ctx)
	require.NoError(t, err)
	assert.Equal(t, testEmbedderID, id)

	err = storage.Upsert(ctx, NewEmbeddingRecord(course, []float32{1, 0}, "other/model/2"))
	assert.ErrorIs(t, err, types.ErrEmbedderMismatch)

	err = storage.Upsert(ctx, NewEmbeddingRecord(course, []float32{1, 0, 0}, ""))
	assert.ErrorIs(t, err, types.ErrEmbedderMismatch)

	require.NoError(t, storage.Reset(ctx))
	n, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	id, err = storage.EmbedderID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, storage.Upsert(ctx, NewEmbeddingRecord(course, []float32{1, 0}, "other/model/2")))
}

func TestIndexUpsertBatchRollsBack(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	err := storage.UpsertBatch(ctx, []*EmbeddingRecord{
		NewEmbeddingRecord(*testCourse("a", "A", "", ""), []float32{1}, testEmbedderID),
		NewEmbeddingRecord(*testCourse("b", "B", "", ""), nil, testEmbedderID),
	})
	require.Error(t, err)

	n, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	id, err := storage.EmbedderID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestIndexContentHashAndDelete(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	course := *testCourse("c1", "Kubernetes", strings.Repeat("k", 800), "")

	rec := NewEmbeddingRecord(course, []float32{0, 0, 1}, testEmbedderID)
	assert.Equal(t, course.ContentHash(), rec.ContentHash)
	assert.Equal(t, MaxIndexedDescription+3, len(rec.Course.Description))
	require.NoError(t, storage.Upsert(ctx, rec))

	hash, err := storage.ContentHash(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, course.ContentHash(), hash)

	_, err = storage.ContentHash(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err := storage.ListCourseIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)

	require.NoError(t, storage.Delete(ctx, "c1"))
	assert.ErrorIs(t, storage.Delete(ctx, "c1"), ErrNotFound)

	ids, err = storage.ListCourseIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
