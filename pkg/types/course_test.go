package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourseValidate(t *testing.T) {
	c := Course{ID: "c1", Title: "Go"}
	require.NoError(t, c.Validate())

	c.ID = ""
	assert.ErrorIs(t, c.Validate(), ErrMissingCourseID)

	c = Course{ID: "c1"}
	assert.ErrorIs(t, c.Validate(), ErrMissingCourseTitle)
}

func TestCourseContentHash(t *testing.T) {
	a := Course{ID: "a", Title: "Go", Description: "Concurrency", URL: "https://x"}
	b := Course{ID: "b", Title: "Go", Description: "Concurrency", Provider: "other"}
	assert.Equal(t, a.ContentHash(), b.ContentHash(), "only title and description count")

	c := Course{Title: "GoC", Description: "oncurrency"}
	assert.NotEqual(t, a.ContentHash(), c.ContentHash())
}

func TestCourseEmbeddingText(t *testing.T) {
	c := Course{Title: "Go", Description: strings.Repeat("é", 600)}
	text := c.EmbeddingText()
	assert.True(t, strings.HasPrefix(text, "Go. "))
	assert.Equal(t, 4+500, len([]rune(text)))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "éé", Truncate("ééé", 2))
}

func TestAbbreviate(t *testing.T) {
	assert.Equal(t, "abc", Abbreviate("abc", 3))
	assert.Equal(t, "ab...", Abbreviate("abc", 2))
}
