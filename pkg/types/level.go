package types

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Difficulty is the canonical difficulty of a catalog course.
// The zero value means the catalog does not specify one.
type Difficulty string

// Catalog difficulties
const (
	DifficultyUnspecified  Difficulty = ""
	DifficultyBeginner     Difficulty = "BEGINNER"
	DifficultyIntermediate Difficulty = "INTERMEDIATE"
	DifficultyAdvanced     Difficulty = "ADVANCED"
)

// Level is the proficiency a learner declares.
type Level string

// Declared levels. There is no expert catalog tier, so LevelExpert maps onto
// advanced courses.
const (
	LevelNone         Level = ""
	LevelBeginner     Level = "BEGINNER"
	LevelIntermediate Level = "INTERMEDIATE"
	LevelAdvanced     Level = "ADVANCED"
	LevelExpert       Level = "EXPERT"
)

var levelAliases = map[string]Level{
	"beginner":      LevelBeginner,
	"debutant":      LevelBeginner,
	"novice":        LevelBeginner,
	"facile":        LevelBeginner,
	"intermediate":  LevelIntermediate,
	"intermediaire": LevelIntermediate,
	"moyen":         LevelIntermediate,
	"advanced":      LevelAdvanced,
	"avance":        LevelAdvanced,
	"difficile":     LevelAdvanced,
	"expert":        LevelExpert,
}

var exactDifficulty = map[Level]Difficulty{
	LevelBeginner:     DifficultyBeginner,
	LevelIntermediate: DifficultyIntermediate,
	LevelAdvanced:     DifficultyAdvanced,
	LevelExpert:       DifficultyAdvanced,
}

var alternativeDifficulties = map[Level][]Difficulty{
	LevelBeginner:     {DifficultyIntermediate, DifficultyAdvanced},
	LevelIntermediate: {DifficultyBeginner, DifficultyAdvanced},
	LevelAdvanced:     {DifficultyIntermediate},
	LevelExpert:       {DifficultyIntermediate},
}

// ParseLevel normalizes a declared level. Blank input yields LevelNone and true.
// Unknown input yields LevelNone and false.
func ParseLevel(raw string) (Level, bool) {
	key := foldLabel(raw)
	if key == "" {
		return LevelNone, true
	}
	level, ok := levelAliases[key]
	if !ok {
		return LevelNone, false
	}
	return level, true
}

// NormalizeDifficulty maps a raw catalog difficulty onto the canonical set.
// Unrecognized values become DifficultyUnspecified.
func NormalizeDifficulty(raw string) Difficulty {
	level, ok := ParseLevel(raw)
	if !ok || level == LevelNone {
		return DifficultyUnspecified
	}
	return level.Exact()
}

// Exact returns the catalog difficulty matching the level.
func (l Level) Exact() Difficulty {
	return exactDifficulty[l]
}

// Alternatives returns the difficulties searched when exact-level results are
// not good enough. The exact difficulty is never included.
func (l Level) Alternatives() []Difficulty {
	alts := alternativeDifficulties[l]
	out := make([]Difficulty, len(alts))
	copy(out, alts)
	return out
}

// Valid reports whether d is one of the canonical difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyUnspecified, DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// foldLabel lowercases, trims and strips diacritics ("Intermédiaire" -> "intermediaire").
func foldLabel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
