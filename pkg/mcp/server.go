package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/storage"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

const serverName = "catalog-scraper"

// Fetcher turns a URL into a decoded resource
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*models.FetchedResource, error)
}

// Dispatcher routes a fetched resource to its handler
type Dispatcher interface {
	Dispatch(ctx context.Context, res *models.FetchedResource) (models.HandlerResult, error)
}

// Backend is what the tools operate on
type Backend struct {
	Fetcher    Fetcher
	Dispatcher Dispatcher
	Records    storage.RecordStore
	Crawl      CrawlFunc
}

// ServerConfig selects the transport
type ServerConfig struct {
	Transport string // "stdio" or "sse"
	Port      int
	Version   string
}

// Server exposes the catalog as MCP tools
type Server struct {
	mcpServer *server.MCPServer
	cfg       ServerConfig
	backend   Backend
	jobs      *JobManager
	log       *logrus.Entry
}

// NewServer registers every tool on a new MCP server
func NewServer(cfg ServerConfig, backend Backend, logger *logrus.Entry) (*Server, error) {
	if backend.Fetcher == nil || backend.Dispatcher == nil || backend.Records == nil || backend.Crawl == nil {
		return nil, fmt.Errorf("%w: mcp server needs a fetcher, dispatcher, record store and crawl func", utils.ErrConfigValidation)
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &Server{
		mcpServer: server.NewMCPServer(serverName, cfg.Version, server.WithLogging()),
		cfg:       cfg,
		backend:   backend,
		jobs:      NewJobManager(),
		log:       logger.WithField("component", "mcp"),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("classify_url",
		mcp.WithDescription("Fetch a catalog URL, classify it and return its follow-up links and product records"),
		mcp.WithString("url", mcp.Required(), mcp.Description("Absolute URL to fetch")),
	), s.handleClassifyURL)

	s.mcpServer.AddTool(mcp.NewTool("search_products",
		mcp.WithDescription("Search stored product records by id, EAN, name, brand or category"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Case-insensitive substring")),
		mcp.WithNumber("max_results", mcp.Description("Maximum results (default 10, max 100)")),
	), s.handleSearchProducts)

	s.mcpServer.AddTool(mcp.NewTool("get_product",
		mcp.WithDescription("Return the latest stored record of one product"),
		mcp.WithString("key", mcp.Required(), mcp.Description("Record key as returned by search_products")),
	), s.handleGetProduct)

	s.mcpServer.AddTool(mcp.NewTool("start_crawl",
		mcp.WithDescription("Start a full catalog crawl in the background. Returns immediately with a job ID."),
	), s.handleStartCrawl)

	s.mcpServer.AddTool(mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status of a crawl job"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("The job ID returned by start_crawl")),
	), s.handleGetJobStatus)

	s.mcpServer.AddTool(mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a running crawl job"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("The job ID returned by start_crawl")),
	), s.handleCancelJob)

	s.log.Infof("Registered %d MCP tools", 6)
}

// Run serves on the configured transport until it fails or the process exits
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		return server.NewSSEServer(s.mcpServer).Start(addr)
	default:
		return fmt.Errorf("%w: unknown transport %q (supported: stdio, sse)", utils.ErrConfigValidation, s.cfg.Transport)
	}
}

// Shutdown cancels running crawl jobs and waits for them until ctx ends
func (s *Server) Shutdown(ctx context.Context) {
	s.log.Info("Shutting down MCP server...")
	s.jobs.CancelAll(ctx)
}
