package storage

import (
	"context"
	"time"

	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// Catalog is the course catalog the recommendation engine reads from
type Catalog interface {
	UpsertCourse(ctx context.Context, course *types.Course) error
	UpsertCourses(ctx context.Context, courses []*types.Course) error
	GetCourse(ctx context.Context, id string) (*types.Course, error)
	DeleteCourse(ctx context.Context, id string) error
	CountCourses(ctx context.Context) (int, error)

	// ListCourses pages through the catalog in ID order, starting after afterID.
	ListCourses(ctx context.Context, afterID string, limit int) ([]*types.Course, error)

	// FindByKeywords returns up to q.Limit courses whose title or description
	// contains at least one keyword, in ID order.
	FindByKeywords(ctx context.Context, q CatalogQuery) ([]*types.Course, error)
}

// CatalogQuery narrows a keyword search of the catalog
type CatalogQuery struct {
	Keywords     []string           // lowercased; OR-combined
	Difficulties []types.Difficulty // empty means any difficulty
	Limit        int
}

// Index is a persistent nearest-neighbor store of course embeddings.
// All entries share one embedder; the first write tags the index with it.
type Index interface {
	// Upsert inserts or replaces the entry for a course.
	Upsert(ctx context.Context, rec *EmbeddingRecord) error

	// UpsertBatch writes several entries at once.
	UpsertBatch(ctx context.Context, recs []*EmbeddingRecord) error

	// Query returns up to k entries closest to vector under cosine distance,
	// nearest first. An index with no entries returns types.ErrIndexEmpty.
	Query(ctx context.Context, vector []float32, k int, filter *IndexFilter) ([]IndexHit, error)

	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, courseID string) error

	// ContentHash returns the content hash the entry was embedded from,
	// or ErrNotFound.
	ContentHash(ctx context.Context, courseID string) (string, error)
	ListCourseIDs(ctx context.Context) ([]string, error)

	// EmbedderID returns the embedder tag, or "" for an untagged index.
	EmbedderID(ctx context.Context) (string, error)

	// Reset removes every entry and the embedder tag.
	Reset(ctx context.Context) error

	Close() error
}

// Versioned is implemented by stores that expose a token which changes on
// every write, so readers can tell when derived data went stale.
type Versioned interface {
	DataVersion(ctx context.Context) (string, error)
}

// EmbeddingRecord is an index entry: a course vector plus a denormalized copy
// of the course so the index can be queried and filtered without the catalog.
type EmbeddingRecord struct {
	Course      types.Course
	Vector      []float32
	EmbedderID  string
	ContentHash string
	UpdatedAt   time.Time
}

// IndexFilter restricts a query to entries with one of the given difficulties
type IndexFilter struct {
	Difficulties []types.Difficulty
}

// IndexHit is a query result
type IndexHit struct {
	Course   types.Course
	Distance float64 // cosine distance: 0 identical, 2 opposite
}

// MaxIndexedDescription bounds the description stored with an index entry.
const MaxIndexedDescription = 500

// NewEmbeddingRecord builds the index entry for a course. The stored description
// is abbreviated to MaxIndexedDescription characters.
func NewEmbeddingRecord(course types.Course, vector []float32, embedderID string) *EmbeddingRecord {
	hash := course.ContentHash()
	course.Description = types.Abbreviate(course.Description, MaxIndexedDescription)
	return &EmbeddingRecord{
		Course:      course,
		Vector:      vector,
		EmbedderID:  embedderID,
		ContentHash: hash,
		UpdatedAt:   time.Now().UTC(),
	}
}

// SimilarityFromDistance maps a cosine distance in [0, 2] onto a 0-100 score.
func SimilarityFromDistance(d float64) float64 {
	s := (2 - d) / 2 * 100
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	}
	return s
}
