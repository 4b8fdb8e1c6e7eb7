package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// Catalog operations

const courseColumns = "id, title, description, difficulty, duration, provider, categories, url"

func upsertCourseWithQuerier(ctx context.Context, q querier, course *types.Course) error {
	if err := course.Validate(); err != nil {
		return err
	}
	categories, err := encodeCategories(course.Categories)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = q.ExecContext(ctx, `
		INSERT INTO courses (id, title, description, difficulty, duration, provider, categories, url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			difficulty = excluded.difficulty,
			duration = excluded.duration,
			provider = excluded.provider,
			categories = excluded.categories,
			url = excluded.url,
			updated_at = excluded.updated_at
	`, course.ID, course.Title, course.Description, string(course.Difficulty), course.Duration,
		course.Provider, categories, course.URL, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert course %s: %w", course.ID, err)
	}
	return nil
}

// UpsertCourse inserts or replaces a course
func (s *SQLiteStorage) UpsertCourse(ctx context.Context, course *types.Course) error {
	return upsertCourseWithQuerier(ctx, s.db, course)
}

// UpsertCourses inserts or replaces courses in a single transaction
func (s *SQLiteStorage) UpsertCourses(ctx context.Context, courses []*types.Course) error {
	if len(courses) == 0 {
		return nil
	}
	return s.withTx(ctx, func(q querier) error {
		for _, c := range courses {
			if err := upsertCourseWithQuerier(ctx, q, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetCourse returns a course by ID
func (s *SQLiteStorage) GetCourse(ctx context.Context, id string) (*types.Course, error) {
	row := s.rdb.QueryRowContext(ctx, "SELECT "+courseColumns+" FROM courses WHERE id = ?", id)
	course, err := scanCourse(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course %s: %w", id, err)
	}
	return course, nil
}

// DeleteCourse removes a course
func (s *SQLiteStorage) DeleteCourse(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM courses WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete course %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountCourses returns the number of courses in the catalog
func (s *SQLiteStorage) CountCourses(ctx context.Context) (int, error) {
	var n int
	if err := s.rdb.QueryRowContext(ctx, "SELECT COUNT(*) FROM courses").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count courses: %w", err)
	}
	return n, nil
}

// ListCourses pages through the catalog in ID order
func (s *SQLiteStorage) ListCourses(ctx context.Context, afterID string, limit int) ([]*types.Course, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.rdb.QueryContext(ctx,
		"SELECT "+courseColumns+" FROM courses WHERE id > ? ORDER BY id LIMIT ?", afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectCourses(rows)
}

// FindByKeywords returns courses whose lowercased title or description
// contains any keyword, optionally restricted to some difficulties
func (s *SQLiteStorage) FindByKeywords(ctx context.Context, q CatalogQuery) ([]*types.Course, error) {
	if len(q.Keywords) == 0 {
		return []*types.Course{}, nil
	}

	query, args := buildKeywordQuery(q)
	rows, err := s.rdb.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search courses: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectCourses(rows)
}

// buildKeywordQuery builds
//
//	WHERE (kw1 in title OR kw1 in description OR kw2 ...) AND difficulty IN (...)
func buildKeywordQuery(q CatalogQuery) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT " + courseColumns + " FROM courses WHERE (")

	args := make([]interface{}, 0, 2*len(q.Keywords)+len(q.Difficulties)+1)
	for i, kw := range q.Keywords {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'`)
		pattern := "%" + escapeLike(strings.ToLower(kw)) + "%"
		args = append(args, pattern, pattern)
	}
	sb.WriteString(")")

	if len(q.Difficulties) > 0 {
		sb.WriteString(" AND difficulty IN (" + placeholders(len(q.Difficulties)) + ")")
		for _, d := range q.Difficulties {
			args = append(args, string(d))
		}
	}

	sb.WriteString(" ORDER BY id")
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return sb.String(), args
}

// escapeLike escapes LIKE wildcards so keywords match literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCourse(row rowScanner) (*types.Course, error) {
	var c types.Course
	var difficulty, categories string
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &difficulty, &c.Duration,
		&c.Provider, &categories, &c.URL); err != nil {
		return nil, err
	}
	c.Difficulty = types.Difficulty(difficulty)
	cats, err := decodeCategories(categories)
	if err != nil {
		return nil, fmt.Errorf("course %s: %w", c.ID, err)
	}
	c.Categories = cats
	return &c, nil
}

func collectCourses(rows *sql.Rows) ([]*types.Course, error) {
	courses := make([]*types.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func encodeCategories(cats []string) (string, error) {
	if len(cats) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(cats)
	if err != nil {
		return "", fmt.Errorf("encode categories: %w", err)
	}
	return string(b), nil
}

func decodeCategories(s string) ([]string, error) {
	if s == "" || s == "[]" {
		return []string{}, nil
	}
	var cats []string
	if err := json.Unmarshal([]byte(s), &cats); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return cats, nil
}
