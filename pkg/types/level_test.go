package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw    string
		want   Level
		wantOK bool
	}{
		{"", LevelNone, true},
		{"   ", LevelNone, true},
		{"BEGINNER", LevelBeginner, true},
		{"beginner", LevelBeginner, true},
		{"Débutant", LevelBeginner, true},
		{"facile", LevelBeginner, true},
		{"Intermédiaire", LevelIntermediate, true},
		{"INTERMEDIATE", LevelIntermediate, true},
		{"Avancé", LevelAdvanced, true},
		{"difficile", LevelAdvanced, true},
		{" Expert ", LevelExpert, true},
		{"guru", LevelNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseLevel(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestLevelExact(t *testing.T) {
	assert.Equal(t, DifficultyBeginner, LevelBeginner.Exact())
	assert.Equal(t, DifficultyIntermediate, LevelIntermediate.Exact())
	assert.Equal(t, DifficultyAdvanced, LevelAdvanced.Exact())
	assert.Equal(t, DifficultyAdvanced, LevelExpert.Exact())
	assert.Equal(t, DifficultyUnspecified, LevelNone.Exact())
}

func TestLevelAlternatives(t *testing.T) {
	assert.Equal(t, []Difficulty{DifficultyIntermediate, DifficultyAdvanced}, LevelBeginner.Alternatives())
	assert.Equal(t, []Difficulty{DifficultyBeginner, DifficultyAdvanced}, LevelIntermediate.Alternatives())
	assert.Equal(t, []Difficulty{DifficultyIntermediate}, LevelAdvanced.Alternatives())
	assert.Equal(t, []Difficulty{DifficultyIntermediate}, LevelExpert.Alternatives())
	assert.Empty(t, LevelNone.Alternatives())

	for _, l := range []Level{LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert} {
		assert.NotContains(t, l.Alternatives(), l.Exact(), "level %s", l)
	}
}

func TestLevelAlternativesReturnsCopy(t *testing.T) {
	alts := LevelBeginner.Alternatives()
	alts[0] = DifficultyAdvanced
	assert.Equal(t, DifficultyIntermediate, LevelBeginner.Alternatives()[0])
}

func TestNormalizeDifficulty(t *testing.T) {
	assert.Equal(t, DifficultyBeginner, NormalizeDifficulty("Beginner"))
	assert.Equal(t, DifficultyAdvanced, NormalizeDifficulty("EXPERT"))
	assert.Equal(t, DifficultyIntermediate, NormalizeDifficulty("intermédiaire"))
	assert.Equal(t, DifficultyUnspecified, NormalizeDifficulty("Non spécifié"))
	assert.Equal(t, DifficultyUnspecified, NormalizeDifficulty(""))
}

func TestDifficultyValid(t *testing.T) {
	assert.True(t, DifficultyAdvanced.Valid())
	assert.True(t, DifficultyUnspecified.Valid())
	assert.False(t, Difficulty("EXPERT").Valid())
}
