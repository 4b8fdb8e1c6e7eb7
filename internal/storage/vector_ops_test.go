package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// TestVectorSearchOptimization verifies that the optimized vector search produces
// the same results as the fallback implementation
func TestVectorSearchOptimization(t *testing.T) {
	if !VectorExtensionAvailable {
		t.Skip("Skipping test: sqlite-vec extension not available")
	}

	storage := setupTestDB(t)
	ctx := context.Background()
	setupVectorTestData(t, ctx, storage)

	queryVector := testVector(384, 7)

	testCases := []struct {
		name   string
		filter *IndexFilter
		limit  int
	}{
		{name: "no filter", limit: 10},
		{name: "one difficulty", filter: &IndexFilter{Difficulties: []types.Difficulty{types.DifficultyBeginner}}, limit: 5},
		{name: "two difficulties", filter: &IndexFilter{Difficulties: []types.Difficulty{types.DifficultyIntermediate, types.DifficultyAdvanced}}, limit: 10},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			optimized, err := searchVectorOptimized(ctx, storage.db, queryVector, tc.limit, tc.filter)
			require.NoError(t, err)

			fallback, err := searchVectorFallback(ctx, storage.db, queryVector, tc.limit, tc.filter)
			require.NoError(t, err)

			require.Equal(t, len(fallback), len(optimized))
			for i := range optimized {
				// sqlite-vec computes in float32
				assert.InDelta(t, fallback[i].Distance, optimized[i].Distance, 1e-4)
			}
		})
	}
}

// TestVectorSearchEdgeCases tests edge cases of the fallback search
func TestVectorSearchEdgeCases(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	setupVectorTestData(t, ctx, storage)

	testCases := []struct {
		name        string
		queryVector []float32
		limit       int
		filter      *IndexFilter
		expected    int
	}{
		{name: "empty query vector", queryVector: []float32{}, limit: 10},
		{name: "dimension mismatch", queryVector: make([]float32, 3), limit: 10},
		{name: "limit caps results", queryVector: testVector(384, 1), limit: 4, expected: 4},
		{name: "filter with no match", queryVector: testVector(384, 1), limit: 10,
			filter: &IndexFilter{Difficulties: []types.Difficulty{"UNKNOWN"}}},
		{name: "zero query vector", queryVector: make([]float32, 384), limit: 30, expected: 30},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			results, err := searchVectorFallback(ctx, storage.db, tc.queryVector, tc.limit, tc.filter)
			require.NoError(t, err)
			assert.NotNil(t, results)
			assert.Len(t, results, tc.expected)
		})
	}
}

func TestSortHitsBreaksTiesByID(t *testing.T) {
	hits := []IndexHit{
		{Course: types.Course{ID: "c"}, Distance: 0.2},
		{Course: types.Course{ID: "b"}, Distance: 0.1},
		{Course: types.Course{ID: "a"}, Distance: 0.2},
	}
	sortHits(hits)

	assert.Equal(t, "b", hits[0].Course.ID)
	assert.Equal(t, "a", hits[1].Course.ID)
	assert.Equal(t, "c", hits[2].Course.ID)
}

func TestVectorSerialization(t *testing.T) {
	vector := []float32{0, 1.5, -2.25, float32(math.Pi)}
	blob := SerializeVector(vector)
	assert.Len(t, blob, 16)
	assert.Equal(t, vector, DeserializeVector(blob))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSimilarityFromDistance(t *testing.T) {
	assert.Equal(t, 100.0, SimilarityFromDistance(0))
	assert.Equal(t, 50.0, SimilarityFromDistance(1))
	assert.Equal(t, 0.0, SimilarityFromDistance(2))
	assert.Equal(t, 0.0, SimilarityFromDistance(2.5))
	assert.Equal(t, 100.0, SimilarityFromDistance(-0.1))
}

// testingTB is a subset of testing.TB that both *testing.T and *testing.B implement
type testingTB interface {
	Helper()
	Errorf(format string, args ...interface{})
	FailNow()
}

// testVector returns a deterministic non-zero vector
func testVector(dim, seed int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(math.Sin(float64(seed*31+i) * 0.1))
	}
	return v
}

// setupVectorTestData indexes 30 courses spread across the three difficulties
func setupVectorTestData(tb testingTB, ctx context.Context, storage *SQLiteStorage) {
	tb.Helper()
	difficulties := []types.Difficulty{types.DifficultyBeginner, types.DifficultyIntermediate, types.DifficultyAdvanced}

	recs := make([]*EmbeddingRecord, 0, 30)
	for i := 0; i < 30; i++ {
		course := testCourse(fmt.Sprintf("course-%02d", i), fmt.Sprintf("Course %d", i), "", difficulties[i%3])
		recs = append(recs, NewEmbeddingRecord(*course, testVector(384, i), "test/model/384"))
	}
	if err := storage.UpsertBatch(ctx, recs); err != nil {
		tb.Errorf("failed to index test data: %v", err)
		tb.FailNow()
	}
}

func benchmarkStorage(b *testing.B) (*SQLiteStorage, *sql.DB) {
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(b, err)
	b.Cleanup(func() { _ = storage.Close() })
	setupVectorTestData(b, context.Background(), storage)
	return storage, storage.db
}

// BenchmarkVectorSearchOptimized benchmarks the optimized vector search
func BenchmarkVectorSearchOptimized(b *testing.B) {
	if !VectorExtensionAvailable {
		b.Skip("Skipping benchmark: sqlite-vec extension not available")
	}
	_, db := benchmarkStorage(b)
	queryVector := testVector(384, 3)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := searchVectorOptimized(ctx, db, queryVector, 10, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkVectorSearchFallback benchmarks the fallback vector search
func BenchmarkVectorSearchFallback(b *testing.B) {
	_, db := benchmarkStorage(b)
	queryVector := testVector(384, 3)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := searchVectorFallback(ctx, db, queryVector, 10, nil); err != nil {
			b.Fatal(err)
		}
	}
}
