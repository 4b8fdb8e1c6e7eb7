package indexer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// CourseRecord is the JSON shape of a course in an import file
type CourseRecord struct {
	ID          string   `json:"course_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Difficulty  string   `json:"difficulty"`
	Duration    string   `json:"duration"`
	Provider    string   `json:"provider"`
	Categories  []string `json:"categories"`
	URL         string   `json:"url"`
}

// Course converts the record, normalizing its difficulty label
func (r CourseRecord) Course() *types.Course {
	return &types.Course{
		ID:          strings.TrimSpace(r.ID),
		Title:       strings.TrimSpace(r.Title),
		Description: r.Description,
		Difficulty:  types.NormalizeDifficulty(r.Difficulty),
		Duration:    r.Duration,
		Provider:    r.Provider,
		Categories:  r.Categories,
		URL:         r.URL,
	}
}

// ImportStatistics reports the outcome of an import
type ImportStatistics struct {
	Imported int
	Indexed  int
	Invalid  int
	Errors   []string
}

// DecodeCourses reads a JSON array of course records
func DecodeCourses(r io.Reader) ([]CourseRecord, error) {
	var recs []CourseRecord
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("failed to decode courses: %w", err)
	}
	return recs, nil
}

// ImportCourses upserts decoded courses into the catalog in one transaction.
// Invalid records are counted and skipped. When index is true each imported
// course is also embedded into the index.
func (idx *Indexer) ImportCourses(ctx context.Context, recs []CourseRecord, index bool) (*ImportStatistics, error) {
	stats := &ImportStatistics{Errors: []string{}}

	courses := make([]*types.Course, 0, len(recs))
	for i, rec := range recs {
		c := rec.Course()
		if err := c.Validate(); err != nil {
			stats.Invalid++
			stats.Errors = append(stats.Errors, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		courses = append(courses, c)
	}
	if len(courses) == 0 {
		return stats, nil
	}

	if err := idx.catalog.UpsertCourses(ctx, courses); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrCatalogUnavailable, err)
	}
	stats.Imported = len(courses)

	if !index {
		return stats, nil
	}
	for _, c := range courses {
		if err := idx.IndexCourse(ctx, c); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", c.ID, err))
			continue
		}
		stats.Indexed++
	}
	return stats, nil
}
