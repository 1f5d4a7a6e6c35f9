package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatusArgument defines corpus status parameters. The tool takes none.
type StatusArgument struct{}

// StatusHandler handles the corpus_status MCP tool.
type StatusHandler struct {
	engine *Engine
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(engine *Engine) *StatusHandler {
	return &StatusHandler{
		engine: engine,
	}
}

// Handle reports the corpus status.
func (h *StatusHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args StatusArgument) (*mcp.CallToolResult, any, error) {
	status := h.engine.Status()

	var sb strings.Builder
	sb.WriteString("## Corpus Status\n\n")
	sb.WriteString(fmt.Sprintf("**Directory**: %s\n", status.Dir))
	sb.WriteString(fmt.Sprintf("**Total chunks**: %d\n", status.TotalChunks))
	sb.WriteString(fmt.Sprintf("**Embedding model**: %s (%d dimensions)\n", status.ModelID, status.Dimension))
	sb.WriteString(fmt.Sprintf("**Lexical documents**: %d\n", status.LexicalDocs))

	if len(status.Sources) == 0 {
		sb.WriteString("\nNo source documents ingested yet.\n")
	} else {
		sb.WriteString(fmt.Sprintf("\n**Sources** (%d):\n", len(status.Sources)))
		for _, source := range status.Sources {
			sb.WriteString(fmt.Sprintf("- %s\n", source))
		}
	}

	return textResult(sb.String()), status, nil
}

// GetToolDefinition returns the MCP tool definition.
func (h *StatusHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "corpus_status",
		Description: "Report the state of the specification corpus: chunk counts, sources and embedding model",
	}
}

// RegisterStatusTool registers the status tool with an MCP server.
func RegisterStatusTool(server *mcp.Server, engine *Engine) {
	handler := NewStatusHandler(engine)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
