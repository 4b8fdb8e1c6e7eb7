package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/skillcourse-mcp/pkg/types"
)

func TestCourseCRUD(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	course := testCourse("c1", "Docker Basics", "Containers for beginners", types.DifficultyBeginner)
	require.NoError(t, storage.UpsertCourse(ctx, course))

	got, err := storage.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, course, got)

	course.Title = "Docker Fundamentals"
	course.Categories = nil
	require.NoError(t, storage.UpsertCourse(ctx, course))
	got, err = storage.GetCourse(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Docker Fundamentals", got.Title)
	assert.Equal(t, []string{}, got.Categories)

	n, err := storage.CountCourses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, storage.DeleteCourse(ctx, "c1"))
	_, err = storage.GetCourse(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, storage.DeleteCourse(ctx, "c1"), ErrNotFound)
}

func TestUpsertCourseValidates(t *testing.T) {
	storage := setupTestDB(t)
	err := storage.UpsertCourse(context.Background(), &types.Course{ID: "x"})
	assert.ErrorIs(t, err, types.ErrMissingCourseTitle)
}

func TestUpsertCoursesIsAtomic(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	err := storage.UpsertCourses(ctx, []*types.Course{
		testCourse("a", "A course", "", ""),
		{ID: "b"}, // invalid
	})
	require.Error(t, err)

	n, err := storage.CountCourses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestListCourses(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	var courses []*types.Course
	for i := 5; i >= 1; i-- {
		courses = append(courses, testCourse(fmt.Sprintf("c%d", i), fmt.Sprintf("Course %d", i), "", ""))
	}
	require.NoError(t, storage.UpsertCourses(ctx, courses))

	page, err := storage.ListCourses(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c1", page[0].ID)
	assert.Equal(t, "c2", page[1].ID)

	page, err = storage.ListCourses(ctx, "c2", 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "c3", page[0].ID)
}

func TestFindByKeywords(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.UpsertCourses(ctx, []*types.Course{
		testCourse("c1", "Python for Data Science", "pandas and numpy", types.DifficultyBeginner),
		testCourse("c2", "Advanced Python", "metaprogramming", types.DifficultyAdvanced),
		testCourse("c3", "Statistics", "Learn data analysis with R", types.DifficultyIntermediate),
		testCourse("c4", "Watercolor", "painting", types.DifficultyBeginner),
		testCourse("c5", "100% Go", "literal percent", types.DifficultyBeginner),
	}))

	t.Run("keywords are OR-combined over title and description", func(t *testing.T) {
		got, err := storage.FindByKeywords(ctx, CatalogQuery{Keywords: []string{"python", "data"}, Limit: 150})
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2", "c3"}, ids(got))
	})

	t.Run("case insensitive", func(t *testing.T) {
		got, err := storage.FindByKeywords(ctx, CatalogQuery{Keywords: []string{"PYTHON"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2"}, ids(got))
	})

	t.Run("difficulty filter applies to every keyword", func(t *testing.T) {
		got, err := storage.FindByKeywords(ctx, CatalogQuery{
			Keywords:     []string{"python", "data"},
			Difficulties: []types.Difficulty{types.DifficultyAdvanced, types.DifficultyIntermediate},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"c2", "c3"}, ids(got))
	})

	t.Run("limit", func(t *testing.T) {
		got, err := storage.FindByKeywords(ctx, CatalogQuery{Keywords: []string{"python", "data"}, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2"}, ids(got))
	})

	t.Run("wildcards match literally", func(t *testing.T) {
		got, err := storage.FindByKeywords(ctx, CatalogQuery{Keywords: []string{"100%"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"c5"}, ids(got))

		got, err = storage.FindByKeywords(ctx, CatalogQuery{Keywords: []string{"%"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"c5"}, ids(got))
	})

	t.Run("no match and no keywords", func(t *testing.T) {
		got, err := storage.FindByKeywords(ctx, CatalogQuery{Keywords: []string{"kubernetes"}})
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = storage.FindByKeywords(ctx, CatalogQuery{})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestBuildKeywordQuery(t *testing.T) {
	query, args := buildKeywordQuery(CatalogQuery{
		Keywords:     []string{"go"},
		Difficulties: []types.Difficulty{types.DifficultyBeginner},
		Limit:        150,
	})
	assert.Contains(t, query, "WHERE (LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\') AND difficulty IN (?)")
	assert.Equal(t, []interface{}{"%go%", "%go%", "BEGINNER", 150}, args)
}

func ids(courses []*types.Course) []string {
	out := make([]string, len(courses))
	for i, c := range courses {
		out[i] = c.ID
	}
	return out
}
