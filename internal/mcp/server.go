package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fieldscope/specmatch/internal/engine"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string
	Engine  *engine.Engine
}

// CreateServer creates the MCP server and registers the engine tools
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Engine != nil {
		engine.RegisterIngestTool(s, cfg.Engine)
		engine.RegisterAnalyzeTool(s, cfg.Engine)
		engine.RegisterSearchTool(s, cfg.Engine)
		engine.RegisterStatusTool(s, cfg.Engine)
	}

	return s
}
