package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/film-indexer/pkg/index"
	"github.com/Sriram-PR/film-indexer/pkg/models"
	"github.com/Sriram-PR/film-indexer/pkg/parse"
)

// handleQueryIndex handles the query_index tool
func (s *Server) handleQueryIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	term := request.GetString("term", "")
	key := index.NormalizeTerm(term)
	if key == "" {
		return mcp.NewToolResultError("term parameter is required"), nil
	}

	maxResults := request.GetInt("max_results", 0)
	if maxResults < 0 {
		return mcp.NewToolResultError(fmt.Sprintf("max_results must be >= 0, got %d", maxResults)), nil
	}

	records := s.cfg.Index.Query(key)
	total := len(records)
	if maxResults > 0 && len(records) > maxResults {
		records = records[:maxResults]
	}

	result := struct {
		Term      string           `json:"term"`
		Total     int              `json:"total"`
		Truncated bool             `json:"truncated"`
		Records   []*models.Record `json:"records"`
	}{
		Term:      key,
		Total:     total,
		Truncated: len(records) < total,
		Records:   records,
	}
	return toolResultJSON(result)
}

// handleIndexStats handles the index_stats tool
func (s *Server) handleIndexStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := map[string]any{
		"index": s.cfg.Index.Stats(),
	}
	if s.cfg.Jobs != nil {
		result["crawls"] = s.cfg.Jobs.List()
	}
	return toolResultJSON(result)
}

// handleCrawlStatus handles the crawl_status tool
func (s *Server) handleCrawlStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	crawlID := request.GetString("crawl_id", "")
	if crawlID == "" {
		return toolResultJSON(map[string]any{"crawls": s.cfg.Jobs.List()})
	}

	job, ok := s.cfg.Jobs.Get(crawlID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("crawl '%s' not found", crawlID)), nil
	}
	return toolResultJSON(job)
}

// handleDetailStatus handles the detail_status tool
func (s *Server) handleDetailStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL := request.GetString("url", "")
	if rawURL == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	key, _, err := parse.ParseAndNormalize(rawURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	status, entry, err := s.cfg.Details.CheckDetailStatus(key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}

	result := struct {
		URL    string                `json:"url"`
		Key    string                `json:"key"`
		Status models.DetailStatus   `json:"status"`
		Entry  *models.DetailDBEntry `json:"entry,omitempty"`
	}{
		URL:    rawURL,
		Key:    key,
		Status: status,
		Entry:  entry,
	}
	return toolResultJSON(result)
}

// toolResultJSON formats data as an indented JSON text result
func toolResultJSON(data any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("error formatting result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
