package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fieldscope/specmatch/internal/domain"
)

// AnalyzeArgument defines audit analysis parameters.
type AnalyzeArgument struct {
	AuditText string `json:"audit_text" jsonschema_description:"Raw audit report text containing go-back infractions"`
}

// AnalyzeHandler handles the analyze_audit MCP tool.
type AnalyzeHandler struct {
	engine *Engine
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(engine *Engine) *AnalyzeHandler {
	return &AnalyzeHandler{
		engine: engine,
	}
}

// Handle analyzes an audit report and returns one verdict per infraction.
func (h *AnalyzeHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args AnalyzeArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.AuditText) == "" {
		return toolError("Audit text cannot be empty"), nil, nil
	}

	verdicts, err := h.engine.AnalyzeInfractions(ctx, args.AuditText)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrIndexNotReady):
			return toolError("The spec corpus is empty. Ingest specification documents before analyzing audits."), nil, nil
		case errors.Is(err, domain.ErrEmbeddingProvider):
			return toolError(fmt.Sprintf("Embedding provider error (retryable): %s", err)), nil, nil
		default:
			return toolError(fmt.Sprintf("Analysis failed: %s", err)), nil, nil
		}
	}

	return formatVerdicts(verdicts), nil, nil
}

// formatVerdicts renders verdicts as markdown for the MCP response.
func formatVerdicts(verdicts []domain.RepealVerdict) *mcp.CallToolResult {
	if len(verdicts) == 0 {
		return textResult("No infractions found in the audit text.")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Analyzed %d infraction(s):\n\n", len(verdicts)))

	for i, v := range verdicts {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, v.Infraction.NormalizedText))
		sb.WriteString(fmt.Sprintf("**Status**: %s\n", v.Status))
		sb.WriteString(fmt.Sprintf("**Confidence**: %.0f%%\n", v.Confidence))
		sb.WriteString(fmt.Sprintf("**Severity**: %s\n", v.Infraction.Severity))
		if len(v.SpecReferences) > 0 {
			sb.WriteString(fmt.Sprintf("**Spec references**: %s\n", strings.Join(v.SpecReferences, ", ")))
		}
		sb.WriteString("\n")
		for _, reason := range v.Reasons {
			sb.WriteString(fmt.Sprintf("- %s\n", reason))
		}
		sb.WriteString("\n")
	}

	return textResult(sb.String())
}

// GetToolDefinition returns the MCP tool definition.
func (h *AnalyzeHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "analyze_audit",
		Description: "Analyze an audit report and determine which infractions are repealable against the spec corpus",
	}
}

// RegisterAnalyzeTool registers the analyze tool with an MCP server.
func RegisterAnalyzeTool(server *mcp.Server, engine *Engine) {
	handler := NewAnalyzeHandler(engine)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
