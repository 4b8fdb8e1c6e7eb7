package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/dshills/skillcourse-mcp/pkg/types"
)

const hitColumns = "course_id, title, description, difficulty, duration, provider, categories, url"

// searchVector returns the k entries nearest to queryVector under cosine distance
func searchVector(ctx context.Context, db *sql.DB, queryVector []float32, k int, filter *IndexFilter) ([]IndexHit, error) {
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, db, queryVector, k, filter)
	}
	return searchVectorFallback(ctx, db, queryVector, k, filter)
}

// searchVectorOptimized computes distances in SQL with the sqlite-vec extension
func searchVectorOptimized(ctx context.Context, db *sql.DB, queryVector []float32, k int, filter *IndexFilter) ([]IndexHit, error) {
	query := "SELECT " + hitColumns + ", vec_distance_cosine(vector, ?) AS distance FROM course_embeddings WHERE dimension = ?"
	args := []interface{}{serializeVector(queryVector), len(queryVector)}

	query, args = applyIndexFilter(query, args, filter)
	query += " ORDER BY distance ASC, course_id ASC LIMIT ?"
	args = append(args, k)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]IndexHit, 0, k)
	for rows.Next() {
		var hit IndexHit
		course, err := scanCourseWith(rows, &hit.Distance)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		hit.Course = *course
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// searchVectorFallback scores every candidate entry in Go (purego builds)
func searchVectorFallback(ctx context.Context, db *sql.DB, queryVector []float32, k int, filter *IndexFilter) ([]IndexHit, error) {
	query := "SELECT " + hitColumns + ", vector FROM course_embeddings WHERE dimension = ?"
	args := []interface{}{len(queryVector)}
	query, args = applyIndexFilter(query, args, filter)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits, err := computeDistances(rows, queryVector)
	if err != nil {
		return nil, err
	}

	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// applyIndexFilter adds the difficulty predicate
func applyIndexFilter(query string, args []interface{}, filter *IndexFilter) (string, []interface{}) {
	if filter == nil || len(filter.Difficulties) == 0 {
		return query, args
	}
	query += " AND difficulty IN (" + placeholders(len(filter.Difficulties)) + ")"
	for _, d := range filter.Difficulties {
		args = append(args, string(d))
	}
	return query, args
}

// computeDistances decodes rows and computes their cosine distance to queryVector
func computeDistances(rows *sql.Rows, queryVector []float32) ([]IndexHit, error) {
	hits := make([]IndexHit, 0, 256)
	for rows.Next() {
		var blob []byte
		course, err := scanCourseWith(rows, &blob)
		if err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue
		}
		hits = append(hits, IndexHit{
			Course:   *course,
			Distance: 1 - cosineSimilarity(queryVector, vector),
		})
	}
	return hits, rows.Err()
}

// sortHits orders by distance, then course ID, so equal distances are stable across runs
func sortHits(hits []IndexHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Course.ID < hits[j].Course.ID
	})
}

// scanCourseWith scans the hit columns followed by one extra column
func scanCourseWith(rows *sql.Rows, extra interface{}) (*types.Course, error) {
	var c types.Course
	var difficulty, categories string
	if err := rows.Scan(&c.ID, &c.Title, &c.Description, &difficulty, &c.Duration,
		&c.Provider, &categories, &c.URL, extra); err != nil {
		return nil, err
	}
	c.Difficulty = types.Difficulty(difficulty)
	cats, err := decodeCategories(categories)
	if err != nil {
		return nil, err
	}
	c.Categories = cats
	return &c, nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either is a zero vector or the lengths differ
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SerializeVector encodes a vector as a little-endian float32 blob
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector decodes a little-endian float32 blob
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity returns the cosine similarity of two vectors
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
