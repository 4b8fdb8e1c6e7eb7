package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/skillcourse-mcp/internal/recommender"
	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeBackendUnavailable = -32001 // Catalog or embedder unavailable
	ErrorCodeSyncInProgress     = -32002 // Another sync is already running
	ErrorCodeEmbedderMismatch   = -32003 // Index built by another embedder
)

// Argument bounds
const (
	maxTopN     = 100
	maxSkills   = 20
	maxPerSkill = 20
)

// handleRecommendCourses handles the recommend_courses tool invocation
func (s *Server) handleRecommendCourses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	skill, ok := args["skill"].(string)
	if !ok || skill == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "skill parameter is required", map[string]interface{}{
			"param":  "skill",
			"reason": "missing or empty",
		})
	}

	topN := getIntDefault(args, "top_n", types.DefaultTopN)
	if topN < 1 || topN > maxTopN {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("top_n must be between 1 and %d", maxTopN), map[string]interface{}{
			"param": "top_n",
			"value": topN,
		})
	}
	level := getStringDefault(args, "level", "")

	resp, err := s.recommender.Recommend(ctx, types.Query{
		Skill:   skill,
		TopN:    topN,
		Level:   level,
		Context: getStringDefault(args, "context", ""),
	})
	if err != nil {
		return nil, s.toMCPError("recommendation failed", err)
	}

	recs := types.NewRecommendations(resp.Results)
	response := map[string]interface{}{
		"skill":           skill,
		"level":           level,
		"backend":         resp.Backend,
		"widened":         resp.Widened,
		"count":           len(recs),
		"recommendations": recs,
		"duration_ms":     resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRecommendForSkills handles the recommend_for_skills tool invocation
func (s *Server) handleRecommendForSkills(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	skills, ok := getStringSlice(args, "skills")
	if !ok || len(skills) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "skills parameter is required", map[string]interface{}{
			"param":  "skills",
			"reason": "missing, empty or not a list of strings",
		})
	}
	if len(skills) > maxSkills {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("at most %d skills allowed", maxSkills), map[string]interface{}{
			"param": "skills",
			"value": len(skills),
		})
	}

	perSkill := getIntDefault(args, "per_skill", types.DefaultTopN)
	if perSkill < 1 || perSkill > maxPerSkill {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("per_skill must be between 1 and %d", maxPerSkill), map[string]interface{}{
			"param": "per_skill",
			"value": perSkill,
		})
	}

	resp, err := s.recommender.RecommendForSkills(ctx, recommender.SkillsRequest{
		Skills:   skills,
		PerSkill: perSkill,
		Level:    getStringDefault(args, "level", ""),
		Context:  getStringDefault(args, "context", ""),
	})
	if err != nil {
		return nil, s.toMCPError("recommendation failed", err)
	}

	response := map[string]interface{}{
		"skills":          resp.Skills,
		"count":           len(resp.Recommendations),
		"recommendations": resp.Recommendations,
	}
	if len(resp.Failed) > 0 {
		response["failed"] = resp.Failed
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSyncIndex handles the sync_index tool invocation
func (s *Server) handleSyncIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	opts := s.syncOptions
	opts.Force = getBoolDefault(args, "force", false)

	stats, err := s.syncer.Sync(ctx, opts)
	if err != nil {
		return nil, s.toMCPError("index sync failed", err)
	}
	s.recommender.InvalidateCache()

	response := map[string]interface{}{
		"synced":      true,
		"forced":      opts.Force,
		"scanned":     stats.Scanned,
		"added":       stats.Added,
		"updated":     stats.Updated,
		"skipped":     stats.Skipped,
		"deleted":     stats.Deleted,
		"failed":      stats.Failed,
		"duration_ms": stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetIndexStatus handles the get_index_status tool invocation
func (s *Server) handleGetIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.syncer.Status(ctx)
	if err != nil {
		return nil, s.toMCPError("failed to get index status", err)
	}

	response := map[string]interface{}{
		"catalog_courses":  st.CatalogCourses,
		"indexed_courses":  st.IndexedCourses,
		"index_embedder":   st.IndexEmbedder,
		"running_embedder": st.RunningEmbedder,
		"sync_needed":      st.SyncNeeded,
		"sync_running":     st.SyncRunning,
	}
	if st.LastSync != nil {
		response["last_sync"] = map[string]interface{}{
			"at":          st.LastSyncAt.UTC().Format(time.RFC3339),
			"added":       st.LastSync.Added,
			"updated":     st.LastSync.Updated,
			"deleted":     st.LastSync.Deleted,
			"failed":      st.LastSync.Failed,
			"duration_ms": st.LastSync.Duration.Milliseconds(),
		}
	}
	if st.SyncNeeded {
		response["message"] = "Index is behind the catalog. Use sync_index to update it."
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// toMCPError maps a service error onto an MCP error code
func (s *Server) toMCPError(message string, err error) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, types.ErrInvalidQuery):
		code = ErrorCodeInvalidParams
	case errors.Is(err, types.ErrCatalogUnavailable), errors.Is(err, types.ErrEmbedderUnavailable):
		code = ErrorCodeBackendUnavailable
	case errors.Is(err, types.ErrSyncInProgress):
		code = ErrorCodeSyncInProgress
	case errors.Is(err, types.ErrEmbedderMismatch):
		code = ErrorCodeEmbedderMismatch
	}
	if code == ErrorCodeInternalError {
		s.logger.Error(message, zap.Error(err))
	} else {
		s.logger.Warn(message, zap.Error(err))
	}
	return newMCPError(code, message, map[string]interface{}{
		"error": err.Error(),
	})
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a list of strings; ok is false when any item is not a string
func getStringSlice(args map[string]interface{}, key string) ([]string, bool) {
	switch v := args[key].(type) {
	case []string:
		return v, true
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
