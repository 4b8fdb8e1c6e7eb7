package types

import "math"

// ScoredCandidate is a course scored for one recommendation call. Never persisted.
type ScoredCandidate struct {
	Course        Course
	SemanticScore float64 // 0-100
	LexicalScore  float64 // 0-100
	HybridScore   float64 // 0.6*semantic + 0.4*lexical
	LevelExact    bool    // retrieved under the declared level rather than a widened one
}

// Recommendation is the outward shape of a ranked candidate.
type Recommendation struct {
	CourseID        string   `json:"course_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	URL             string   `json:"url"`
	Difficulty      string   `json:"difficulty"`
	Duration        string   `json:"duration"`
	Provider        string   `json:"provider"`
	Categories      []string `json:"categories"`
	ScoreSimilarite float64  `json:"score_similarite"`
	ScoreSemantique float64  `json:"score_semantique"`
	ScoreLexical    float64  `json:"score_lexical"`
	LevelExact      bool     `json:"level_exact"`
	MatchedSkill    string   `json:"matched_skill,omitempty"`
}

// Output defaults
const (
	MaxOutputDescription = 300
	UnspecifiedLabel     = "Not specified"
)

// NewRecommendation converts a candidate to its outward shape. The score is the
// unbonused hybrid score rounded to two decimals.
func NewRecommendation(c ScoredCandidate) Recommendation {
	difficulty := string(c.Course.Difficulty)
	if difficulty == "" {
		difficulty = UnspecifiedLabel
	}
	duration := c.Course.Duration
	if duration == "" {
		duration = UnspecifiedLabel
	}
	categories := c.Course.Categories
	if categories == nil {
		categories = []string{}
	}
	return Recommendation{
		CourseID:        c.Course.ID,
		Title:           c.Course.Title,
		Description:     Abbreviate(c.Course.Description, MaxOutputDescription),
		URL:             c.Course.URL,
		Difficulty:      difficulty,
		Duration:        duration,
		Provider:        c.Course.Provider,
		Categories:      categories,
		ScoreSimilarite: Round2(c.HybridScore),
		ScoreSemantique: Round2(c.SemanticScore),
		ScoreLexical:    Round2(c.LexicalScore),
		LevelExact:      c.LevelExact,
	}
}

// NewRecommendations converts candidates in order.
func NewRecommendations(cs []ScoredCandidate) []Recommendation {
	out := make([]Recommendation, len(cs))
	for i, c := range cs {
		out[i] = NewRecommendation(c)
	}
	return out
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
