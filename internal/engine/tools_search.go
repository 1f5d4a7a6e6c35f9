package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fieldscope/specmatch/internal/domain"
	"github.com/fieldscope/specmatch/internal/lexical"
)

// DefaultSearchLimit bounds search_spec results when no limit is given.
const DefaultSearchLimit = 10

// SearchArgument defines spec search parameters.
type SearchArgument struct {
	Query  string `json:"query" jsonschema_description:"Full-text search query over the spec corpus"`
	Source string `json:"source,omitempty" jsonschema_description:"Filter by source document name (e.g., 022178.pdf)"`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Maximum number of results (default 10)"`
}

// SearchHandler handles the search_spec MCP tool.
type SearchHandler struct {
	engine *Engine
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(engine *Engine) *SearchHandler {
	return &SearchHandler{
		engine: engine,
	}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Query) == "" {
		return toolError("Query cannot be empty"), nil, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	hits, err := h.engine.SearchText(args.Query, args.Source, limit)
	if err != nil {
		if errors.Is(err, domain.ErrIndexNotReady) {
			return toolError("The spec corpus is empty. Ingest specification documents first."), nil, nil
		}
		return toolError(fmt.Sprintf("Search failed: %s", err)), nil, nil
	}

	return formatHits(hits, args.Query), nil, nil
}

// formatHits renders lexical hits for the MCP response.
func formatHits(hits []lexical.TextHit, queryStr string) *mcp.CallToolResult {
	if len(hits) == 0 {
		return textResult(fmt.Sprintf("No results found for query: %s", queryStr))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s) for '%s':\n\n", len(hits), queryStr))

	for i, hit := range hits {
		sb.WriteString(fmt.Sprintf("### %d. %s p.%d\n", i+1, hit.Source, hit.Page))
		sb.WriteString(fmt.Sprintf("**Score**: %.4f\n\n", hit.Score))
		if len(hit.Fragments) > 0 {
			sb.WriteString("```\n")
			for _, fragment := range hit.Fragments {
				sb.WriteString(fragment)
				sb.WriteString("\n")
			}
			sb.WriteString("```\n")
		}
		sb.WriteString("\n")
	}

	return textResult(sb.String())
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_spec",
		Description: "Search the ingested specification corpus using full-text search",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, engine *Engine) {
	handler := NewSearchHandler(engine)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
