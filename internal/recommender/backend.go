package recommender

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/skillcourse-mcp/internal/retriever"
	"github.com/dshills/skillcourse-mcp/internal/storage"
	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// Backend names
const (
	BackendIndex      = "index"
	BackendBruteForce = "bruteforce"
)

// DefaultIndexOverfetch multiplies top_n to size an index query.
const DefaultIndexOverfetch = 5

// Retrieval is one backend call
type Retrieval struct {
	Skill        string
	QueryVector  []float32
	Difficulties []types.Difficulty // empty means any difficulty
	TopN         int
}

// Backend produces scored candidates for a retrieval
type Backend interface {
	Name() string
	Retrieve(ctx context.Context, r Retrieval) ([]types.ScoredCandidate, error)
}

// IndexedBackend queries a nearest-neighbor index
type IndexedBackend struct {
	index     storage.Index
	overfetch int
}

// NewIndexedBackend creates an IndexedBackend querying top_n*overfetch neighbors
func NewIndexedBackend(index storage.Index, overfetch int) *IndexedBackend {
	if overfetch <= 0 {
		overfetch = DefaultIndexOverfetch
	}
	return &IndexedBackend{index: index, overfetch: overfetch}
}

func (b *IndexedBackend) Name() string { return BackendIndex }

// Retrieve returns index hits in distance order. types.ErrIndexEmpty is passed
// through so callers can fall back to brute force.
func (b *IndexedBackend) Retrieve(ctx context.Context, r Retrieval) ([]types.ScoredCandidate, error) {
	var filter *storage.IndexFilter
	if len(r.Difficulties) > 0 {
		filter = &storage.IndexFilter{Difficulties: r.Difficulties}
	}

	hits, err := b.index.Query(ctx, r.QueryVector, r.TopN*b.overfetch, filter)
	if err != nil {
		if errors.Is(err, types.ErrIndexEmpty) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: index query: %w", types.ErrCatalogUnavailable, err)
	}

	out := make([]types.ScoredCandidate, len(hits))
	for i, h := range hits {
		out[i] = Score(r.Skill, h.Course, storage.SimilarityFromDistance(h.Distance))
	}
	return out, nil
}

// BruteForceBackend embeds keyword-matched catalog courses per call
type BruteForceBackend struct {
	retriever *retriever.BruteForce
}

// NewBruteForceBackend wraps a brute-force retriever
func NewBruteForceBackend(r *retriever.BruteForce) *BruteForceBackend {
	return &BruteForceBackend{retriever: r}
}

func (b *BruteForceBackend) Name() string { return BackendBruteForce }

func (b *BruteForceBackend) Retrieve(ctx context.Context, r Retrieval) ([]types.ScoredCandidate, error) {
	return b.retriever.Retrieve(ctx, retriever.Request{
		Skill:        r.Skill,
		QueryVector:  r.QueryVector,
		Difficulties: r.Difficulties,
	})
}
