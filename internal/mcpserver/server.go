// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the vulnerability catalog to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/bugwall/internal/apperr"
	"github.com/starford/bugwall/internal/catalog"
	"github.com/starford/bugwall/internal/parser"
	"github.com/starford/bugwall/internal/query"
)

// ResourceURI is the URI of the record format contract resource.
const ResourceURI = "bugwall://record-format"

const defaultSearchLimit = 20

// Server wraps the MCP server with catalog tools.
type Server struct {
	mcp *server.MCPServer
	cat *catalog.Catalog
}

// New creates a new MCP server with all catalog tools registered.
func New(cat *catalog.Catalog, version string) *Server {
	s := &Server{cat: cat}

	s.mcp = server.NewMCPServer(
		"Bugwall",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Search vulnerability records with fuzzy matching, filters and sorting. "+
			"A query shaped like an ID (VUL-123) returns exact ID matches."),
		mcp.WithString("query", mcp.Description("Free-text query; empty lists everything")),
		mcp.WithString("category", mcp.Description("Exact category")),
		mcp.WithString("status", mcp.Description("unresolved, resolved, not-applicable or archived")),
		mcp.WithString("level", mcp.Description("I, II, III, IV or V")),
		mcp.WithString("dateFrom", mcp.Description("Inclusive lower bound, YYYY-MM-DD")),
		mcp.WithString("dateTo", mcp.Description("Inclusive upper bound, YYYY-MM-DD")),
		mcp.WithString("sort", mcp.Description("date-desc (default), date-asc, level-desc, level-asc, title-asc or title-desc")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("read_record",
		mcp.WithDescription("Read the full document of a record: header and Markdown body."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Record slug (file name without .md)")),
	), s.readRecord)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List the distinct record categories."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Count records per status and critical (IV/V) records."),
	), s.getStats)

	s.mcp.AddTool(mcp.NewTool("get_record_contract",
		mcp.WithDescription("Returns the record document format contract."),
	), s.getRecordContract)

	s.mcp.AddResource(
		mcp.NewResource(ResourceURI, "Record Format Contract",
			mcp.WithResourceDescription("Document format every vulnerability record follows."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type searchHit struct {
	Slug         string `json:"slug"`
	ID           string `json:"id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	Level        string `json:"level"`
	Category     string `json:"category"`
	DiscoveredAt string `json:"discoveredAt"`
}

type searchResult struct {
	Total   int         `json:"total"`
	Query   string      `json:"query"`
	Records []searchHit `json:"records"`
}

func (s *Server) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := query.Decode(map[string]string{
		query.KeySearch:   req.GetString("query", ""),
		query.KeyCategory: req.GetString("category", ""),
		query.KeyStatus:   req.GetString("status", ""),
		query.KeyLevel:    req.GetString("level", ""),
		query.KeyDateFrom: req.GetString("dateFrom", ""),
		query.KeyDateTo:   req.GetString("dateTo", ""),
		query.KeySort:     req.GetString("sort", ""),
	})
	limit := req.GetInt("limit", defaultSearchLimit)

	page, err := s.cat.List(ctx, st, limit, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := searchResult{Total: page.Total, Query: page.Query, Records: make([]searchHit, len(page.Records))}
	for i, r := range page.Records {
		md := r.Metadata
		out.Records[i] = searchHit{
			Slug:         r.Slug,
			ID:           md.ID,
			Title:        md.Title,
			Status:       string(md.Status),
			Level:        string(md.Level),
			Category:     md.Category,
			DiscoveredAt: md.DiscoveredAt,
		}
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.cat.Get(ctx, slug)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			if hint, ok := s.cat.Suggest(ctx, slug); ok {
				return mcp.NewToolResultError(fmt.Sprintf("not found: %s (did you mean %s?)", slug, hint)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", slug)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := parser.Serialize(rec.Metadata, rec.RawBody)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(doc)), nil
}

func (s *Server) listCategories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := s.cat.Categories(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(cats) == 0 {
		return mcp.NewToolResultText("no categories found"), nil
	}
	return mcp.NewToolResultText(strings.Join(cats, "\n")), nil
}

func (s *Server) getStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.cat.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, _ := json.MarshalIndent(st, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getRecordContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormatContract), nil
}

func (s *Server) readRecordFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ResourceURI,
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}
