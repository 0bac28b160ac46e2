package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/film-indexer/pkg/index"
	"github.com/Sriram-PR/film-indexer/pkg/metrics"
	"github.com/Sriram-PR/film-indexer/pkg/storage"
)

const (
	serverName      = "film-indexer"
	shutdownTimeout = 5 * time.Second
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	Index     *index.InvertedIndex // Queried by the tools; may still be filling
	Jobs      *JobManager          // Optional; enables crawl_status
	Details   storage.DetailStore  // Optional; enables detail_status
	Transport string               // "stdio" or "sse"
	Addr      string               // Listen address for sse
	Version   string
	Logger    *logrus.Entry
	Metrics   *metrics.Metrics

	// Stdio streams; default to os.Stdin/os.Stdout
	Stdin  io.Reader
	Stdout io.Writer
}

// Server exposes the film index as MCP tools
type Server struct {
	mcpServer *server.MCPServer
	cfg       *ServerConfig
	log       *logrus.Entry
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.New())
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	mcpServer := server.NewMCPServer(
		serverName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		cfg:       cfg,
		log:       cfg.Logger.WithField("component", "mcp"),
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	queryTool := mcp.NewTool("query_index",
		mcp.WithDescription("Look up films by a single word of their title, year, director or actor names. Matching is case-insensitive."),
		mcp.WithString("term",
			mcp.Required(),
			mcp.Description("One word, e.g. 'pacino' or '1995'"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of records to return (default: all)"),
		),
	)
	s.mcpServer.AddTool(queryTool, s.instrument("query_index", s.handleQueryIndex))

	statsTool := mcp.NewTool("index_stats",
		mcp.WithDescription("Report the size of the film index"),
	)
	s.mcpServer.AddTool(statsTool, s.instrument("index_stats", s.handleIndexStats))

	count := 2
	if s.cfg.Jobs != nil {
		statusTool := mcp.NewTool("crawl_status",
			mcp.WithDescription("Report progress of the background crawl that fills the index"),
			mcp.WithString("crawl_id",
				mcp.Description("Crawl ID (defaults to all crawls)"),
			),
		)
		s.mcpServer.AddTool(statusTool, s.instrument("crawl_status", s.handleCrawlStatus))
		count++
	}

	if s.cfg.Details != nil {
		detailTool := mcp.NewTool("detail_status",
			mcp.WithDescription("Report whether the crawl has visited a detail page and how processing ended"),
			mcp.WithString("url",
				mcp.Required(),
				mcp.Description("Absolute URL of the detail page; tracking parameters are ignored"),
			),
		)
		s.mcpServer.AddTool(detailTool, s.instrument("detail_status", s.handleDetailStatus))
		count++
	}

	s.log.Infof("Registered %d MCP tools", count)
}

// instrument counts tool calls by outcome. A tool-level error result counts as a failure.
func (s *Server) instrument(tool string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := h(ctx, request)
		outcomeErr := err
		if outcomeErr == nil && result != nil && result.IsError {
			outcomeErr = errToolResult
		}
		s.cfg.Metrics.ObserveToolCall(tool, outcomeErr)
		return result, err
	}
}

var errToolResult = errors.New("tool returned an error result")

// Run serves MCP with the configured transport until ctx is done
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		stdin, stdout := s.cfg.Stdin, s.cfg.Stdout
		if stdin == nil {
			stdin = os.Stdin
		}
		if stdout == nil {
			stdout = os.Stdout
		}
		err := server.NewStdioServer(s.mcpServer).Listen(ctx, stdin, stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case "sse":
		s.log.Infof("Starting MCP server with SSE transport on %s", s.cfg.Addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		errCh := make(chan error, 1)
		go func() { errCh <- sseServer.Start(s.cfg.Addr) }()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}
		return s.shutdownSSE(sseServer)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

func (s *Server) shutdownSSE(sseServer *server.SSEServer) error {
	s.log.Info("Shutting down MCP server...")
	if s.cfg.Jobs != nil {
		s.cfg.Jobs.CancelAll()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sseServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("sse shutdown: %w", err)
	}
	return nil
}
