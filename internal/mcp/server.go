package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/skillcourse-mcp/internal/indexer"
	"github.com/dshills/skillcourse-mcp/internal/recommender"
	"github.com/dshills/skillcourse-mcp/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "skillcourse-mcp"
)

// ServerVersion is the reported server version, set at build time by the CLI
var ServerVersion = "1.0.0"

// Recommender answers recommendation queries
type Recommender interface {
	Recommend(ctx context.Context, q types.Query) (*recommender.Response, error)
	RecommendForSkills(ctx context.Context, req recommender.SkillsRequest) (*recommender.SkillsResponse, error)
	InvalidateCache()
}

// Syncer manages the embedding index
type Syncer interface {
	Sync(ctx context.Context, opts indexer.Options) (*indexer.Statistics, error)
	Status(ctx context.Context) (*indexer.Status, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp         *server.MCPServer
	recommender Recommender
	syncer      Syncer
	syncOptions indexer.Options
	logger      *zap.Logger
}

// NewServer creates a new MCP server instance. syncOpts apply to sync_index
// calls (Force is taken from the tool arguments).
func NewServer(rec Recommender, syncer Syncer, syncOpts indexer.Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:         mcpServer,
		recommender: rec,
		syncer:      syncer,
		syncOptions: syncOpts,
		logger:      logger,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio", zap.String("version", ServerVersion))
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(recommendCoursesTool(), s.handleRecommendCourses)
	s.mcp.AddTool(recommendForSkillsTool(), s.handleRecommendForSkills)
	s.mcp.AddTool(syncIndexTool(), s.handleSyncIndex)
	s.mcp.AddTool(getIndexStatusTool(), s.handleGetIndexStatus)
}
