package recommender

import (
	"context"

	"go.uber.org/zap"

	"github.com/dshills/skillcourse-mcp/internal/metrics"
	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// SearchState is the terminal state of a level fallback search
type SearchState string

const (
	StateNoLevel SearchState = "NO_LEVEL"
	StateExact   SearchState = "EXACT"
	StateWidened SearchState = "WIDENED"
)

// LevelFallbackSearch retrieves at the declared level first and widens to
// neighbouring levels when the best exact-level candidate is below the
// quality threshold.
type LevelFallbackSearch struct {
	threshold float64
	logger    *zap.Logger
}

// NewLevelFallbackSearch creates a search with the default quality threshold
func NewLevelFallbackSearch(logger *zap.Logger) *LevelFallbackSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LevelFallbackSearch{threshold: QualityThreshold, logger: logger}
}

// Search runs the fallback policy over backend. Candidates are deduplicated by
// course ID but not ranked.
func (f *LevelFallbackSearch) Search(ctx context.Context, backend Backend, r Retrieval, level types.Level) ([]types.ScoredCandidate, SearchState, error) {
	if level == types.LevelNone {
		r.Difficulties = nil
		cands, err := backend.Retrieve(ctx, r)
		if err != nil {
			return nil, StateNoLevel, err
		}
		return markLevel(dedupe(cands), false), StateNoLevel, nil
	}

	r.Difficulties = []types.Difficulty{level.Exact()}
	exact, err := backend.Retrieve(ctx, r)
	if err != nil {
		return nil, StateExact, err
	}
	exact = markLevel(dedupe(exact), true)

	best, ok := bestScore(exact)
	if ok && best >= f.threshold {
		return exact, StateExact, nil
	}

	f.logger.Debug("widening level search",
		zap.String("skill", r.Skill),
		zap.String("level", string(level)),
		zap.Int("exact_candidates", len(exact)),
		zap.Float64("best_exact_score", best))
	metrics.LevelWideningsTotal.Inc()

	r.Difficulties = level.Alternatives()
	alts, err := backend.Retrieve(ctx, r)
	if err != nil {
		return nil, StateWidened, err
	}

	seen := make(map[string]struct{}, len(exact))
	for _, c := range exact {
		seen[c.Course.ID] = struct{}{}
	}
	merged := exact
	for _, c := range alts {
		if _, dup := seen[c.Course.ID]; dup {
			continue
		}
		seen[c.Course.ID] = struct{}{}
		c.LevelExact = false
		merged = append(merged, c)
	}
	return merged, StateWidened, nil
}

func markLevel(cands []types.ScoredCandidate, exact bool) []types.ScoredCandidate {
	for i := range cands {
		cands[i].LevelExact = exact
	}
	return cands
}

// bestScore returns the highest hybrid score, or false for no candidates
func bestScore(cands []types.ScoredCandidate) (float64, bool) {
	if len(cands) == 0 {
		return 0, false
	}
	best := cands[0].HybridScore
	for _, c := range cands[1:] {
		if c.HybridScore > best {
			best = c.HybridScore
		}
	}
	return best, true
}
