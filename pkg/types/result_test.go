package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRecommendation(t *testing.T) {
	c := ScoredCandidate{
		Course: Course{
			ID:          "c1",
			Title:       "Docker Basics",
			Description: strings.Repeat("a", 350),
			URL:         "https://example.com/docker",
			Provider:    "Coursera",
		},
		SemanticScore: 71.234,
		LexicalScore:  90,
		HybridScore:   78.7404,
		LevelExact:    true,
	}

	rec := NewRecommendation(c)
	assert.Equal(t, "c1", rec.CourseID)
	assert.Equal(t, 78.74, rec.ScoreSimilarite)
	assert.Equal(t, 71.23, rec.ScoreSemantique)
	assert.Equal(t, 90.0, rec.ScoreLexical)
	assert.Equal(t, UnspecifiedLabel, rec.Difficulty)
	assert.Equal(t, UnspecifiedLabel, rec.Duration)
	assert.Equal(t, []string{}, rec.Categories)
	assert.Len(t, rec.Description, 303)
	assert.True(t, rec.LevelExact)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 60.0, Round2(59.999))
	assert.Equal(t, 12.35, Round2(12.345000001))
}
