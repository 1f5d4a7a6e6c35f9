package mcp

import (
	"context"
	"testing"

	"github.com/fieldscope/specmatch/internal/embedding"
	"github.com/fieldscope/specmatch/internal/engine"
)

func TestCreateServer(t *testing.T) {
	cfg := ServerConfig{
		Name:    "test-server",
		Version: "1.0.0",
	}

	server := CreateServer(cfg)
	if server == nil {
		t.Fatal("Expected server to be created")
	}
}

func TestCreateServer_EmptyConfig(t *testing.T) {
	cfg := ServerConfig{}

	server := CreateServer(cfg)
	if server == nil {
		t.Fatal("Expected server to be created even with empty config")
	}
}

func TestCreateServer_WithoutEngine(t *testing.T) {
	cfg := ServerConfig{
		Name:    "test-server",
		Version: "1.0.0",
		Engine:  nil,
	}

	server := CreateServer(cfg)
	if server == nil {
		t.Fatal("Expected server to be created without an engine")
	}
}

func TestCreateServer_WithEngine(t *testing.T) {
	eng, err := engine.New(context.Background(), t.TempDir(), embedding.NewLocalProvider(64), engine.DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			t.Errorf("Failed to close engine: %v", err)
		}
	}()

	cfg := ServerConfig{
		Name:    "test-server",
		Version: "1.0.0",
		Engine:  eng,
	}

	server := CreateServer(cfg)
	if server == nil {
		t.Fatal("Expected server to be created with engine tools registered")
	}

	// The MCP SDK doesn't expose a way to list registered tools,
	// so we just verify the server was created successfully.
	// Integration tests verify tools are accessible via MCP protocol.
}
