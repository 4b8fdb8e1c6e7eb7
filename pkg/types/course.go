package types

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"
)

// Course is a catalog record. The recommendation engine never mutates it.
type Course struct {
	ID          string
	Title       string
	Description string
	Difficulty  Difficulty
	Duration    string
	Provider    string
	Categories  []string
	URL         string
}

// Validate checks the fields every stored course must have
func (c *Course) Validate() error {
	if c.ID == "" {
		return ErrMissingCourseID
	}
	if c.Title == "" {
		return ErrMissingCourseTitle
	}
	return nil
}

// ContentHash identifies the text an embedding was computed from.
// It changes only when the title or description change.
func (c *Course) ContentHash() string {
	h := sha256.New()
	h.Write([]byte(c.Title))
	h.Write([]byte{0})
	h.Write([]byte(c.Description))
	return hex.EncodeToString(h.Sum(nil))
}

// EmbeddingText is the text embedded for a course: "{title}. {description[:500]}".
func (c *Course) EmbeddingText() string {
	return c.Title + ". " + Truncate(c.Description, MaxEmbeddedDescription)
}

// MaxEmbeddedDescription is the number of description characters that take
// part in embedding and lexical scoring.
const MaxEmbeddedDescription = 500

// Truncate returns at most n characters of s without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Abbreviate truncates s to n characters and appends "..." when it was cut.
func Abbreviate(s string, n int) string {
	cut := Truncate(s, n)
	if len(cut) < len(s) {
		return cut + "..."
	}
	return s
}
