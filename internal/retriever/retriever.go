// Package retriever scores catalog courses against a query by embedding them
// on the fly. It is the fallback used when no embedding index is available.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/dshills/skillcourse-mcp/internal/embedder"
	"github.com/dshills/skillcourse-mcp/internal/lexical"
	"github.com/dshills/skillcourse-mcp/internal/metrics"
	"github.com/dshills/skillcourse-mcp/internal/storage"
	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// Defaults
const (
	DefaultWindow           = 150
	DefaultFailureThreshold = 3
)

// ScoreFunc turns a course and its semantic score into a scored candidate
type ScoreFunc func(skill string, course types.Course, semantic float64) types.ScoredCandidate

// Config tunes a BruteForce retriever
type Config struct {
	Window           int // max candidates read from the catalog
	FailureThreshold int // leading embed failures that abort the scan
	Workers          int // embedding pool size
	Logger           *zap.Logger
}

// Request is a single retrieval
type Request struct {
	Skill        string
	QueryVector  []float32
	Difficulties []types.Difficulty // empty means any difficulty
	Limit        int                // overrides Config.Window when > 0
}

// BruteForce embeds keyword-matched catalog courses per request
type BruteForce struct {
	catalog  storage.Catalog
	embedder embedder.Embedder
	score    ScoreFunc
	pool     *ants.Pool
	cfg      Config
	logger   *zap.Logger
}

// New creates a BruteForce retriever. Call Release when done.
func New(catalog storage.Catalog, emb embedder.Embedder, score ScoreFunc, cfg Config) (*BruteForce, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if emb == nil {
		return nil, errors.New("embedder is required")
	}
	if score == nil {
		return nil, errors.New("score function is required")
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &BruteForce{
		catalog:  catalog,
		embedder: emb,
		score:    score,
		pool:     pool,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Release stops the worker pool
func (b *BruteForce) Release() {
	b.pool.Release()
}

// Retrieve returns scored candidates in catalog order.
//
// Candidates whose embedding fails are skipped. When the first
// FailureThreshold candidates (or all of them, if fewer) fail, the embedder
// is considered down and the call fails with types.ErrEmbedderUnavailable.
func (b *BruteForce) Retrieve(ctx context.Context, req Request) ([]types.ScoredCandidate, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = b.cfg.Window
	}

	courses, err := b.catalog.FindByKeywords(ctx, storage.CatalogQuery{
		Keywords:     lexical.Keywords(req.Skill),
		Difficulties: req.Difficulties,
		Limit:        limit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrCatalogUnavailable, err)
	}
	if len(courses) == 0 {
		return []types.ScoredCandidate{}, nil
	}

	vectors, errs := b.embedAll(ctx, courses)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if n := leadingFailures(errs); n >= min(b.cfg.FailureThreshold, len(courses)) {
		return nil, fmt.Errorf("%w: %d consecutive embedding failures: %w",
			types.ErrEmbedderUnavailable, n, errs[0])
	}

	out := make([]types.ScoredCandidate, 0, len(courses))
	for i, c := range courses {
		if errs[i] != nil {
			metrics.SkippedCandidatesTotal.Inc()
			b.logger.Warn("skipping candidate",
				zap.String("course_id", c.ID),
				zap.Error(errs[i]))
			continue
		}
		semantic := clamp(storage.CosineSimilarity(req.QueryVector, vectors[i]) * 100)
		out = append(out, b.score(req.Skill, *c, semantic))
	}
	return out, nil
}

// embedAll embeds every course on the pool; results are index-aligned with courses
func (b *BruteForce) embedAll(ctx context.Context, courses []*types.Course) ([][]float32, []error) {
	vectors := make([][]float32, len(courses))
	errs := make([]error, len(courses))

	var wg sync.WaitGroup
	for i, c := range courses {
		i, text := i, c.EmbeddingText()
		task := func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			emb, err := b.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
			if err != nil {
				errs[i] = err
				return
			}
			vectors[i] = emb.Vector
		}

		wg.Add(1)
		if err := b.pool.Submit(task); err != nil {
			// pool released or overloaded; run inline
			task()
		}
	}
	wg.Wait()

	return vectors, errs
}

func leadingFailures(errs []error) int {
	n := 0
	for _, err := range errs {
		if err == nil {
			break
		}
		n++
	}
	return n
}

func clamp(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	}
	return s
}
