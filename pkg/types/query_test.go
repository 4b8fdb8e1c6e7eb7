package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryValidate(t *testing.T) {
	assert.NoError(t, Query{Skill: "Go", TopN: 1}.Validate())
	assert.ErrorIs(t, Query{Skill: "   ", TopN: 3}.Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, Query{Skill: "Go", TopN: 0}.Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, Query{Skill: "Go", TopN: -2}.Validate(), ErrInvalidQuery)
}

func TestQueryNormalize(t *testing.T) {
	q := Query{Skill: "  Docker ", Level: " beginner", Context: " devops "}.Normalize()
	assert.Equal(t, "Docker", q.Skill)
	assert.Equal(t, "beginner", q.Level)
	assert.Equal(t, "devops", q.Context)
	assert.Equal(t, DefaultTopN, q.TopN)

	q = Query{Skill: "Go", TopN: -1}.Normalize()
	assert.Equal(t, -1, q.TopN, "negative values are left for Validate")
}

func TestQuerySearchText(t *testing.T) {
	assert.Equal(t,
		"Learn Kubernetes programming development course tutorial",
		Query{Skill: "Kubernetes"}.SearchText())
	assert.Equal(t,
		"Learn Kubernetes for cloud infrastructure programming development course tutorial",
		Query{Skill: " Kubernetes ", Context: "cloud infrastructure"}.SearchText())
}
