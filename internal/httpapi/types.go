package httpapi

import (
	"time"

	"github.com/dshills/skillcourse-mcp/internal/indexer"
	"github.com/dshills/skillcourse-mcp/internal/recommender"
	"github.com/dshills/skillcourse-mcp/pkg/types"
)

// Error codes
const (
	codeBadRequest          = "bad_request"
	codeValidationFailed    = "validation_failed"
	codeInvalidQuery        = "invalid_query"
	codeSyncInProgress      = "sync_in_progress"
	codeEmbedderMismatch    = "embedder_mismatch"
	codeNoIndex             = "no_index"
	codeCatalogUnavailable  = "catalog_unavailable"
	codeEmbedderUnavailable = "embedder_unavailable"
	codeTimeout             = "timeout"
	codeShuttingDown        = "shutting_down"
	codeInternal            = "internal_error"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RecommendRequest is the body of POST /v1/recommendations
type RecommendRequest struct {
	Skill   string `json:"skill" validate:"required,max=200"`
	TopN    int    `json:"top_n" validate:"omitempty,min=1,max=100"`
	Level   string `json:"level" validate:"max=50"`
	Context string `json:"context" validate:"max=500"`
}

// Query converts the request to a service query
func (r RecommendRequest) Query() types.Query {
	return types.Query{Skill: r.Skill, TopN: r.TopN, Level: r.Level, Context: r.Context}
}

// RecommendResponse is the reply of POST /v1/recommendations
type RecommendResponse struct {
	Skill           string                 `json:"skill"`
	Level           string                 `json:"level,omitempty"`
	Backend         string                 `json:"backend"`
	Widened         bool                   `json:"widened"`
	CacheHit        bool                   `json:"cache_hit"`
	DurationMS      float64                `json:"duration_ms"`
	Count           int                    `json:"count"`
	Recommendations []types.Recommendation `json:"recommendations"`
}

// NewRecommendResponse builds the reply for one recommendation call
func NewRecommendResponse(req RecommendRequest, resp *recommender.Response) RecommendResponse {
	recs := types.NewRecommendations(resp.Results)
	return RecommendResponse{
		Skill:           req.Skill,
		Level:           req.Level,
		Backend:         resp.Backend,
		Widened:         resp.Widened,
		CacheHit:        resp.CacheHit,
		DurationMS:      float64(resp.Duration.Microseconds()) / 1000,
		Count:           len(recs),
		Recommendations: recs,
	}
}

// SkillsRequest is the body of POST /v1/recommendations/skills
type SkillsRequest struct {
	Skills   []string `json:"skills" validate:"required,min=1,max=20"`
	PerSkill int      `json:"per_skill" validate:"omitempty,min=1,max=20"`
	Level    string   `json:"level" validate:"max=50"`
	Context  string   `json:"context" validate:"max=500"`
}

// SkillsResponse is the reply of POST /v1/recommendations/skills
type SkillsResponse struct {
	Skills          []string               `json:"skills"`
	Count           int                    `json:"count"`
	Recommendations []types.Recommendation `json:"recommendations"`
	Failed          map[string]string      `json:"failed,omitempty"`
}

// NewSkillsResponse builds the reply for a multi-skill call
func NewSkillsResponse(resp *recommender.SkillsResponse) SkillsResponse {
	return SkillsResponse{
		Skills:          resp.Skills,
		Count:           len(resp.Recommendations),
		Recommendations: resp.Recommendations,
		Failed:          resp.Failed,
	}
}

// SyncRequest is the optional body of POST /v1/index/sync
type SyncRequest struct {
	Force bool `json:"force"`
}

// SyncAccepted is the reply of POST /v1/index/sync
type SyncAccepted struct {
	Status string `json:"status"`
	Force  bool   `json:"force"`
}

// SyncStatistics mirrors indexer.Statistics
type SyncStatistics struct {
	Scanned    int      `json:"scanned"`
	Added      int      `json:"added"`
	Updated    int      `json:"updated"`
	Skipped    int      `json:"skipped"`
	Deleted    int      `json:"deleted"`
	Failed     int      `json:"failed"`
	DurationMS int64    `json:"duration_ms"`
	Errors     []string `json:"errors,omitempty"`
}

// NewSyncStatistics converts indexer statistics
func NewSyncStatistics(stats *indexer.Statistics) *SyncStatistics {
	return &SyncStatistics{
		Scanned:    stats.Scanned,
		Added:      stats.Added,
		Updated:    stats.Updated,
		Skipped:    stats.Skipped,
		Deleted:    stats.Deleted,
		Failed:     stats.Failed,
		DurationMS: stats.Duration.Milliseconds(),
		Errors:     stats.ErrorMessages,
	}
}

// StatusResponse is the reply of GET /v1/index/status
type StatusResponse struct {
	CatalogCourses  int             `json:"catalog_courses"`
	IndexedCourses  int             `json:"indexed_courses"`
	IndexEmbedder   string          `json:"index_embedder"`
	RunningEmbedder string          `json:"running_embedder"`
	SyncNeeded      bool            `json:"sync_needed"`
	SyncRunning     bool            `json:"sync_running"`
	LastSync        *SyncStatistics `json:"last_sync,omitempty"`
	LastSyncAt      *time.Time      `json:"last_sync_at,omitempty"`
}

// NewStatusResponse converts an index status
func NewStatusResponse(st *indexer.Status) StatusResponse {
	resp := StatusResponse{
		CatalogCourses:  st.CatalogCourses,
		IndexedCourses:  st.IndexedCourses,
		IndexEmbedder:   st.IndexEmbedder,
		RunningEmbedder: st.RunningEmbedder,
		SyncNeeded:      st.SyncNeeded,
		SyncRunning:     st.SyncRunning,
	}
	if st.LastSync != nil {
		resp.LastSync = NewSyncStatistics(st.LastSync)
		at := st.LastSyncAt.UTC()
		resp.LastSyncAt = &at
	}
	return resp
}

// HealthResponse is the reply of GET /healthz
type HealthResponse struct {
	Status string `json:"status"`
}
