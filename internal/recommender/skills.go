package recommender

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// SkillsRequest asks for courses covering several missing skills
type SkillsRequest struct {
	Skills   []string
	PerSkill int // default types.DefaultTopN
	Level    string
	Context  string
}

// SkillsResponse merges the recommendations of every skill
type SkillsResponse struct {
	Recommendations []types.Recommendation
	Skills          []string          // skills that were searched, in request order
	Failed          map[string]string // skill -> error message
}

// RecommendForSkills runs Recommend for each skill and merges the results by
// score. A course may appear once per skill. A failing skill is skipped; the
// call fails only when every skill fails.
func (s *Service) RecommendForSkills(ctx context.Context, req SkillsRequest) (*SkillsResponse, error) {
	skills := make([]string, 0, len(req.Skills))
	for _, sk := range req.Skills {
		if sk = strings.TrimSpace(sk); sk != "" {
			skills = append(skills, sk)
		}
	}
	if len(skills) == 0 {
		return nil, fmt.Errorf("%w: at least one skill is required", types.ErrInvalidQuery)
	}
	perSkill := req.PerSkill
	if perSkill == 0 {
		perSkill = types.DefaultTopN
	}

	out := &SkillsResponse{
		Recommendations: make([]types.Recommendation, 0, len(skills)*perSkill),
		Skills:          skills,
		Failed:          make(map[string]string),
	}

	var lastErr error
	for _, skill := range skills {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := s.Recommend(ctx, types.Query{
			Skill:   skill,
			TopN:    perSkill,
			Level:   req.Level,
			Context: req.Context,
		})
		if err != nil {
			s.logger.Warn("skill recommendation failed", zap.String("skill", skill), zap.Error(err))
			out.Failed[skill] = err.Error()
			lastErr = err
			continue
		}

		seen := make(map[string]struct{}, len(resp.Results))
		for _, c := range resp.Results {
			key := c.Course.URL
			if key == "" {
				key = "id:" + c.Course.ID
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			rec := types.NewRecommendation(c)
			rec.MatchedSkill = skill
			out.Recommendations = append(out.Recommendations, rec)
		}
	}

	if len(out.Failed) == len(skills) {
		return nil, lastErr
	}

	sort.SliceStable(out.Recommendations, func(i, j int) bool {
		return out.Recommendations[i].ScoreSimilarite > out.Recommendations[j].ScoreSimilarite
	})
	return out, nil
}
