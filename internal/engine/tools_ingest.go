package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fieldscope/specmatch/internal/domain"
	"github.com/fieldscope/specmatch/internal/ingest"
)

// IngestArgument defines spec ingestion parameters.
type IngestArgument struct {
	Source string   `json:"source" jsonschema_description:"Source document name (e.g., 022178.pdf)"`
	Pages  []string `json:"pages,omitempty" jsonschema_description:"Page texts in page order"`
	Text   string   `json:"text,omitempty" jsonschema_description:"Full document text when page boundaries are unknown"`
}

// IngestHandler handles the ingest_spec MCP tool.
type IngestHandler struct {
	engine *Engine
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(engine *Engine) *IngestHandler {
	return &IngestHandler{
		engine: engine,
	}
}

// Handle ingests a specification document into the corpus.
func (h *IngestHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args IngestArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Source) == "" {
		return toolError("Source cannot be empty"), nil, nil
	}

	pages := make([]ingest.Page, 0, len(args.Pages))
	for i, text := range args.Pages {
		pages = append(pages, ingest.Page{Text: text, Number: i + 1})
	}
	if len(pages) == 0 {
		pages = append(pages, ingest.Page{Text: args.Text, Number: 1})
	}

	result, err := h.engine.IngestDocument(ctx, pages, args.Source)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyDocument):
			return toolError(fmt.Sprintf("Document %s produced no indexable content", args.Source)), nil, nil
		case errors.Is(err, domain.ErrIngestionBusy):
			return toolError("Another ingestion is in progress. Please try again later."), nil, nil
		case errors.Is(err, domain.ErrEmbeddingProvider):
			return toolError(fmt.Sprintf("Embedding provider error (retryable): %s", err)), nil, nil
		default:
			return toolError(fmt.Sprintf("Ingestion failed: %s", err)), nil, nil
		}
	}

	if result.Deduplicated {
		return textResult(fmt.Sprintf("Source %s is already indexed with identical content (%d chunks total). Nothing to do.",
			args.Source, result.TotalChunks)), nil, nil
	}

	return textResult(fmt.Sprintf("Indexed %d chunks from %s. Corpus now holds %d chunks.",
		result.ChunksAdded, args.Source, result.TotalChunks)), nil, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *IngestHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "ingest_spec",
		Description: "Ingest a utility specification document into the searchable corpus",
	}
}

// RegisterIngestTool registers the ingest tool with an MCP server.
func RegisterIngestTool(server *mcp.Server, engine *Engine) {
	handler := NewIngestHandler(engine)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}

// toolError builds an error tool result with a plain text message.
func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// textResult builds a successful tool result with a plain text message.
func textResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
