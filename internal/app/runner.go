package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"

	"github.com/fieldscope/specmatch/internal/calibrate"
	"github.com/fieldscope/specmatch/internal/config"
	"github.com/fieldscope/specmatch/internal/corpus"
	"github.com/fieldscope/specmatch/internal/embedding"
	"github.com/fieldscope/specmatch/internal/engine"
	"github.com/fieldscope/specmatch/internal/extract"
	"github.com/fieldscope/specmatch/internal/ingest"
	"github.com/fieldscope/specmatch/internal/match"
	mcputil "github.com/fieldscope/specmatch/internal/mcp"
)

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	StartSSEServer    func(*mcp.Server, *config.Settings) error
	CreateServer      func(*config.Settings) (*mcp.Server, func(), error)
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:   config.LoadSettingsWithFlags,
		ValidSettings:  config.ValidateSettings,
		StartSSEServer: StartSSEServer,
		CreateServer:   CreateMCPServer,
	}
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	// Load settings
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// Validate settings for conflicting configurations
	if err := params.ValidSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Configure logging - always use stderr to avoid buffering issues
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting specmatch server", "version", version)
	config.Log(settings)

	mcpServer, cleanup, err := params.CreateServer(settings)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	// Start server
	if settings.Transport == "stdio" {
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return mcpServer.Run(ctx, transport)
	} else {
		slog.Info("Starting SSE server", "host", settings.Host, "port", settings.Port)
		return params.StartSSEServer(mcpServer, settings)
	}
}

// NewProvider builds the embedding provider selected by the settings.
func NewProvider(settings *config.Settings) (embedding.Provider, error) {
	switch settings.Embedding.Provider {
	case config.EmbeddingProviderOpenAI:
		return embedding.NewOpenAIProvider(settings.Embedding.APIKey, settings.Embedding.Model)
	case config.EmbeddingProviderLocal:
		return embedding.NewLocalProvider(settings.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", settings.Embedding.Provider)
	}
}

// EngineOptions maps the resolved settings onto the engine's option set.
func EngineOptions(settings *config.Settings) engine.Options {
	opts := engine.DefaultOptions()

	opts.Chunker = ingest.Options{
		ChunkSize:       settings.Engine.ChunkSize,
		ChunkOverlap:    settings.Engine.ChunkOverlap,
		MinChunkChars:   opts.Chunker.MinChunkChars,
		MaxSectionWords: opts.Chunker.MaxSectionWords,
	}
	opts.Extractor = extract.DefaultOptions()
	opts.Extractor.MaxInfractions = settings.Engine.MaxInfractions
	opts.Matcher = match.Options{
		TopK: settings.Engine.TopK,
		// The equipment retrieval depth must never trail top_k.
		EquipmentTopK: max(opts.Matcher.EquipmentTopK, settings.Engine.TopK),
		MinScore:      settings.Engine.MinSimilarityThreshold,
	}
	opts.Calibrator = calibrate.Options{
		HighThreshold:   settings.Engine.HighThreshold,
		MediumThreshold: settings.Engine.MediumThreshold,
		MinMatches:      opts.Calibrator.MinMatches,
	}
	opts.Corpus = corpus.Options{
		EmbeddingBatchSize: settings.Engine.EmbeddingBatchSize,
		DedupEnabled:       settings.Engine.DedupEnabled,
	}
	return opts
}

// NewEngine builds the engine from the resolved settings.
func NewEngine(ctx context.Context, settings *config.Settings) (*engine.Engine, error) {
	provider, err := NewProvider(settings)
	if err != nil {
		return nil, err
	}
	return engine.New(ctx, settings.DataDir, provider, EngineOptions(settings))
}

// CreateMCPServer creates the MCP server with registered tools
func CreateMCPServer(settings *config.Settings) (*mcp.Server, func(), error) {
	eng, err := NewEngine(context.Background(), settings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create engine: %w", err)
	}

	cleanup := func() {
		if err := eng.Close(); err != nil {
			slog.Error("Failed to close engine", "error", err)
		}
	}

	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:    "specmatch",
		Version: "1.0.0",
		Engine:  eng,
	})

	return server, cleanup, nil
}
