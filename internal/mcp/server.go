// Package mcp exposes contract analysis and index search as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mfenderov/contractcheck/internal/analysis"
	"github.com/mfenderov/contractcheck/internal/vectorindex"
	"github.com/mfenderov/contractcheck/pkg/models"
)

const defaultSearchLimit = 5

// Analyzer runs the pipeline on a file on disk.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (*analysis.Result, error)
}

// Fetcher downloads a contract published as a web page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.Document, error)
}

// IndexOpener opens the persisted index without rebuilding it.
type IndexOpener interface {
	Open(ctx context.Context) (*vectorindex.Index, error)
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
	WorkDir string // where fetched pages are written before analysis
}

// Server wraps the MCP server with the analysis pipeline.
type Server struct {
	mcpServer *server.MCPServer
	analyzer  Analyzer
	fetcher   Fetcher
	indexes   IndexOpener
	workDir   string
	mu        sync.Mutex
}

// NewServer creates a new MCP server with the contract tools.
func NewServer(config Config, analyzer Analyzer, fetcher Fetcher, indexes IndexOpener) (*Server, error) {
	if analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	if indexes == nil {
		return nil, errors.New("index opener is required")
	}
	if config.WorkDir == "" {
		config.WorkDir = "."
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		analyzer:  analyzer,
		fetcher:   fetcher,
		indexes:   indexes,
		workDir:   config.WorkDir,
	}

	analyzeTool := mcp.NewTool("analyze_contract",
		mcp.WithDescription("Analyze a contract for major risks, compliance issues and unfair terms. "+
			"Pass either a local file path (PDF, DOCX, TXT, PNG, JPG) or the URL of a web page."),
		mcp.WithString("path",
			mcp.Description("Path of the contract file"),
		),
		mcp.WithString("url",
			mcp.Description("URL of a page containing the contract"),
		),
	)
	mcpServer.AddTool(analyzeTool, s.analyzeHandler)

	searchTool := mcp.NewTool("search_contract_index",
		mcp.WithDescription("Search the chunks of the most recently analyzed contract."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of chunks to return (default: 5)"),
		),
	)
	mcpServer.AddTool(searchTool, s.searchHandler)

	return s, nil
}

func (s *Server) analyzeHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	url := req.GetString("url", "")

	if (path == "") == (url == "") {
		return mcp.NewToolResultError("exactly one of path or url is required"), nil
	}

	result, err := s.handleAnalyze(ctx, path, url)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}
	if result.Failed() {
		return mcp.NewToolResultError(result.Text), nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	limit := req.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	chunks, err := s.handleSearch(ctx, query, limit)
	if errors.Is(err, vectorindex.ErrNotFound) {
		return mcp.NewToolResultError("no contract index found: analyze a contract first"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	data, err := json.Marshal(chunks)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleAnalyze analyzes a local file, or fetches url into the work dir first.
func (s *Server) handleAnalyze(ctx context.Context, path, url string) (*analysis.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if url == "" {
		return s.analyzer.Analyze(ctx, path)
	}
	if s.fetcher == nil {
		return nil, errors.New("url analysis is not configured")
	}

	doc, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	temp := filepath.Join(s.workDir, "temp_file."+doc.Format)
	if err := os.WriteFile(temp, []byte(doc.Content), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write fetched page: %w", err)
	}
	defer func() {
		if err := os.Remove(temp); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove temp file", "path", temp, "error", err)
		}
	}()

	return s.analyzer.Analyze(ctx, temp)
}

func (s *Server) handleSearch(ctx context.Context, query string, limit int) ([]models.ScoredChunk, error) {
	index, err := s.indexes.Open(ctx)
	if err != nil {
		return nil, err
	}
	return index.Search(ctx, query, limit)
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
