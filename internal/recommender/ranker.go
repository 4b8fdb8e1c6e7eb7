package recommender

import (
	"sort"

	"github.com/dshills/skillcourse-mcp/internal/lexical"
	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// Scoring constants
const (
	SemanticWeight = 0.6
	LexicalWeight  = 0.4

	// LevelExactBonus is added to the sort key of exact-level candidates.
	// It never appears in the returned score.
	LevelExactBonus = 15.0

	// QualityThreshold is the best exact-level hybrid score that avoids widening.
	QualityThreshold = 60.0
)

// Score computes the lexical and hybrid scores of a course given its semantic score.
func Score(skill string, course types.Course, semantic float64) types.ScoredCandidate {
	lex := lexical.Score(skill, course.Title, course.Description)
	return types.ScoredCandidate{
		Course:        course,
		SemanticScore: semantic,
		LexicalScore:  lex,
		HybridScore:   SemanticWeight*semantic + LexicalWeight*lex,
	}
}

// Rank deduplicates candidates by course ID (first occurrence wins), orders
// them by hybrid score plus the exact-level bonus, and keeps the first topN.
// Equal keys keep their input order.
func Rank(candidates []types.ScoredCandidate, topN int) []types.ScoredCandidate {
	ranked := dedupe(candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		return sortKey(ranked[i]) > sortKey(ranked[j])
	})

	if topN >= 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

func sortKey(c types.ScoredCandidate) float64 {
	if c.LevelExact {
		return c.HybridScore + LevelExactBonus
	}
	return c.HybridScore
}

// dedupe returns a copy of candidates without repeated course IDs
func dedupe(candidates []types.ScoredCandidate) []types.ScoredCandidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]types.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.Course.ID]; ok {
			continue
		}
		seen[c.Course.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
