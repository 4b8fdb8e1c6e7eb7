// Package lexical scores literal overlap between a skill name and a course.
//
// Scores are tiered and lie in [0, 100]:
//
//	100  title equals the skill
//	 90  title starts with the skill
//	 80  title contains the skill
//	 70  title contains every significant word of the skill
//	40-60 title contains at least half of the significant words
//	+15  description contains the skill
//	+10  description contains every significant word
//	 20  nothing above matched but a word longer than three characters appears in the title
//
// Significant words are words of the skill longer than two characters. A skill
// with none ("Go", "AI") satisfies the all-words tiers.
package lexical

import (
	"strings"
	"unicode/utf8"

	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// Tier scores
const (
	ScoreExactTitle     = 100.0
	ScoreTitlePrefix    = 90.0
	ScoreTitleContains  = 80.0
	ScoreAllWordsTitle  = 70.0
	ScorePartialBase    = 40.0
	ScorePartialRange   = 20.0
	BonusDescSkill      = 15.0
	BonusDescAllWords   = 10.0
	ScoreWeakTitleMatch = 20.0

	// PartialMinRatio is the share of significant words that must appear in the
	// title for the partial tier.
	PartialMinRatio = 0.5

	minSignificantLen = 3 // words shorter than this are ignored
	minWeakMatchLen   = 4
)

// Score returns the lexical relevance of a course title and description for a skill.
func Score(skill, title, description string) float64 {
	skill = strings.ToLower(strings.TrimSpace(skill))
	title = strings.ToLower(title)
	description = strings.ToLower(types.Truncate(description, types.MaxEmbeddedDescription))

	if skill == "" {
		return 0
	}

	if skill == title {
		return ScoreExactTitle
	}
	if strings.Contains(title, skill) {
		if strings.HasPrefix(title, skill) {
			return ScoreTitlePrefix
		}
		return ScoreTitleContains
	}

	words := strings.Fields(skill)
	significant := significantWords(words)

	var score float64
	if containsAll(title, significant) {
		score = ScoreAllWordsTitle
	} else if len(words) > 1 {
		ratio := float64(countContained(title, significant)) / float64(len(significant))
		if ratio >= PartialMinRatio {
			score = ScorePartialBase + ratio*ScorePartialRange
		}
	}

	if strings.Contains(description, skill) {
		score += BonusDescSkill
	} else if containsAll(description, significant) {
		score += BonusDescAllWords
	}

	if score == 0 {
		for _, w := range words {
			if utf8.RuneCountInString(w) >= minWeakMatchLen && strings.Contains(title, w) {
				score = ScoreWeakTitleMatch
				break
			}
		}
	}

	return clamp(score)
}

// Keywords returns the lowercased significant words of a skill, or the whole
// lowercased skill when it has none. Used to pre-filter catalog candidates.
func Keywords(skill string) []string {
	skill = strings.ToLower(strings.TrimSpace(skill))
	if skill == "" {
		return nil
	}
	words := significantWords(strings.Fields(skill))
	if len(words) == 0 {
		return []string{skill}
	}
	return words
}

func significantWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) >= minSignificantLen {
			out = append(out, w)
		}
	}
	return out
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

func countContained(s string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(s, w) {
			n++
		}
	}
	return n
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
