package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/skillcourse-mcp/internal/embedder"
	"github.com/dshills/skillcourse-mcp/internal/indexer"
	"github.com/dshills/skillcourse-mcp/internal/recommender"
	"github.com/dshills/skillcourse-mcp/internal/storage"
	"github.com/dshills/skillcourse-mcp/pkg/types"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.UpsertCourses(context.Background(), []*types.Course{
		{ID: "c1", Title: "Docker Fundamentals", Description: "Learn docker containers",
			Difficulty: types.DifficultyBeginner, URL: "https://example.com/docker"},
		{ID: "c2", Title: "SQL Essentials", Description: "Queries and joins",
			Difficulty: types.DifficultyBeginner, URL: "https://example.com/sql"},
	}))

	emb := embedder.NewLocalProvider(nil, nil)
	svc, err := recommender.NewService(db, db, emb, recommender.Config{})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	return NewServer(svc, indexer.New(db, db, emb, indexer.Config{Workers: 1}), indexer.Options{}, nil)
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)

	var text string
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("unexpected content %T", res.Content[0])
	}

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
}

func TestRecommendCourses(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()

	res, err := s.handleRecommendCourses(ctx, callTool("recommend_courses", map[string]interface{}{
		"skill": "Docker",
		"top_n": float64(2),
		"level": "Débutant",
	}))
	require.NoError(t, err)

	out := resultJSON(t, res)
	assert.Equal(t, "Docker", out["skill"])
	assert.Equal(t, recommender.BackendBruteForce, out["backend"])
	recs := out["recommendations"].([]interface{})
	require.NotEmpty(t, recs)
	first := recs[0].(map[string]interface{})
	assert.Equal(t, "c1", first["course_id"])
	assert.Equal(t, true, first["level_exact"])
}

func TestRecommendCourses_InvalidParams(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args interface{}
	}{
		{"not an object", "skill"},
		{"missing skill", map[string]interface{}{}},
		{"top_n zero", map[string]interface{}{"skill": "Go", "top_n": float64(0)}},
		{"top_n too large", map[string]interface{}{"skill": "Go", "top_n": float64(101)}},
		{"blank skill", map[string]interface{}{"skill": "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req mcp.CallToolRequest
			req.Params.Arguments = tt.args
			_, err := s.handleRecommendCourses(ctx, req)
			requireMCPError(t, err, ErrorCodeInvalidParams)
		})
	}
}

func TestRecommendForSkills(t *testing.T) {
	s := setupServer(t)

	res, err := s.handleRecommendForSkills(context.Background(), callTool("recommend_for_skills", map[string]interface{}{
		"skills":    []interface{}{"Docker", "SQL"},
		"per_skill": float64(1),
	}))
	require.NoError(t, err)

	out := resultJSON(t, res)
	assert.Equal(t, float64(2), out["count"])
	_, hasFailed := out["failed"]
	assert.False(t, hasFailed)

	matched := map[string]bool{}
	for _, r := range out["recommendations"].([]interface{}) {
		matched[r.(map[string]interface{})["matched_skill"].(string)] = true
	}
	assert.Equal(t, map[string]bool{"Docker": true, "SQL": true}, matched)

	_, err = s.handleRecommendForSkills(context.Background(), callTool("recommend_for_skills", map[string]interface{}{
		"skills": []interface{}{"Docker", 3},
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestSyncAndStatus(t *testing.T) {
	s := setupServer(t)
	ctx := context.Background()

	res, err := s.handleGetIndexStatus(ctx, callTool("get_index_status", nil))
	require.NoError(t, err)
	out := resultJSON(t, res)
	assert.Equal(t, true, out["sync_needed"])
	assert.Contains(t, out, "message")

	res, err = s.handleSyncIndex(ctx, callTool("sync_index", map[string]interface{}{"force": true}))
	require.NoError(t, err)
	out = resultJSON(t, res)
	assert.Equal(t, true, out["forced"])
	assert.Equal(t, float64(2), out["added"])

	res, err = s.handleGetIndexStatus(ctx, callTool("get_index_status", nil))
	require.NoError(t, err)
	out = resultJSON(t, res)
	assert.Equal(t, false, out["sync_needed"])
	assert.Contains(t, out, "last_sync")

	res, err = s.handleRecommendCourses(ctx, callTool("recommend_courses", map[string]interface{}{"skill": "SQL"}))
	require.NoError(t, err)
	assert.Equal(t, recommender.BackendIndex, resultJSON(t, res)["backend"])
}

func TestToMCPError(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		err  error
		code int
	}{
		{types.ErrInvalidQuery, ErrorCodeInvalidParams},
		{types.ErrCatalogUnavailable, ErrorCodeBackendUnavailable},
		{types.ErrEmbedderUnavailable, ErrorCodeBackendUnavailable},
		{types.ErrSyncInProgress, ErrorCodeSyncInProgress},
		{types.ErrEmbedderMismatch, ErrorCodeEmbedderMismatch},
		{errors.New("disk on fire"), ErrorCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			requireMCPError(t, s.toMCPError("failed", tt.err), tt.code)
		})
	}
}

func TestGetStringSlice(t *testing.T) {
	got, ok := getStringSlice(map[string]interface{}{"s": []string{"a"}}, "s")
	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, got)

	_, ok = getStringSlice(map[string]interface{}{"s": "a"}, "s")
	assert.False(t, ok)

	_, ok = getStringSlice(map[string]interface{}{}, "s")
	assert.False(t, ok)
}

func TestToolDefinitions(t *testing.T) {
	for _, tool := range []mcp.Tool{
		recommendCoursesTool(), recommendForSkillsTool(), syncIndexTool(), getIndexStatusTool(),
	} {
		assert.NotEmpty(t, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.Equal(t, "object", tool.InputSchema.Type)
	}
	assert.Equal(t, []string{"skill"}, recommendCoursesTool().InputSchema.Required)
}
