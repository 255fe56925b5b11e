package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/zotseek/zotseek/internal/fingerprint"
	"github.com/zotseek/zotseek/internal/indexer"
	"github.com/zotseek/zotseek/internal/jobs"
	"github.com/zotseek/zotseek/internal/search"
	"github.com/zotseek/zotseek/internal/vectordb"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes library search and sync tools.
type Server struct {
	searcher     *search.Engine
	syncer       *indexer.Engine
	store        vectordb.VectorStore
	fingerprints *fingerprint.Store
	states       *indexer.StateStore
	scheduler    *indexer.Scheduler
	jobRunner    *jobs.Runner
	jobStore     *jobs.Store
	mcp          *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies. The job
// runner and store may be nil when the library is read-only (no API key
// with write access); the tag tools are then not registered.
func NewServer(
	searcher *search.Engine,
	syncer *indexer.Engine,
	store vectordb.VectorStore,
	fingerprints *fingerprint.Store,
	states *indexer.StateStore,
	scheduler *indexer.Scheduler,
	jobRunner *jobs.Runner,
	jobStore *jobs.Store,
) *Server {
	s := &Server{
		searcher:     searcher,
		syncer:       syncer,
		store:        store,
		fingerprints: fingerprints,
		states:       states,
		scheduler:    scheduler,
		jobRunner:    jobRunner,
		jobStore:     jobStore,
	}

	s.mcp = server.NewMCPServer(
		"zotseek",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(semanticSearchTool, s.handleSemanticSearch)
	s.mcp.AddTool(updateDatabaseTool, s.handleUpdateDatabase)
	s.mcp.AddTool(databaseStatusTool, s.handleDatabaseStatus)

	if s.jobRunner != nil && s.jobStore != nil {
		s.mcp.AddTool(planTagUpdateTool, s.handlePlanTagUpdate)
		s.mcp.AddTool(applyTagUpdateTool, s.handleApplyTagUpdate)
		s.mcp.AddTool(listTagJobsTool, s.handleListTagJobs)
	}
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
