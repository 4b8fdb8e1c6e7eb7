package types

import (
	"fmt"
	"strings"
)

// DefaultTopN is used when a query does not ask for a result count.
const DefaultTopN = 3

// Query is a single recommendation request.
type Query struct {
	Skill   string
	TopN    int
	Level   string // raw declared level, normalized with ParseLevel
	Context string // optional professional context, enriches the search text
}

// Normalize trims the query and fills TopN when it is zero.
func (q Query) Normalize() Query {
	q.Skill = strings.TrimSpace(q.Skill)
	q.Level = strings.TrimSpace(q.Level)
	q.Context = strings.TrimSpace(q.Context)
	if q.TopN == 0 {
		q.TopN = DefaultTopN
	}
	return q
}

// Validate checks caller input. Errors wrap ErrInvalidQuery.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Skill) == "" {
		return fmt.Errorf("%w: skill is required", ErrInvalidQuery)
	}
	if q.TopN < 1 {
		return fmt.Errorf("%w: top_n must be >= 1, got %d", ErrInvalidQuery, q.TopN)
	}
	return nil
}

// SearchText builds the enriched text embedded for the query.
func (q Query) SearchText() string {
	var b strings.Builder
	b.WriteString("Learn ")
	b.WriteString(strings.TrimSpace(q.Skill))
	if ctx := strings.TrimSpace(q.Context); ctx != "" {
		b.WriteString(" for ")
		b.WriteString(ctx)
	}
	b.WriteString(" programming development course tutorial")
	return b.String()
}
