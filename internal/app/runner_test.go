package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fieldscope/specmatch/internal/config"
	"github.com/fieldscope/specmatch/internal/embedding"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"
)

// noopValidate is a no-op validation function for tests
func noopValidate(*config.Settings) error {
	return nil
}

// engineSettings returns settings that let CreateMCPServer build a real
// engine backed by the local embedding provider and a throwaway data dir.
func engineSettings(t *testing.T) *config.Settings {
	t.Helper()
	settings, err := config.LoadSettingsWithFlags(nil)
	if err != nil {
		t.Fatalf("Failed to load default settings: %v", err)
	}
	settings.Transport = "stdio"
	settings.DataDir = t.TempDir()
	settings.Embedding.Provider = config.EmbeddingProviderLocal
	settings.Embedding.Dimension = 64
	return settings
}

func TestRunWithDeps_ErrorCases(t *testing.T) {
	tests := []struct {
		name           string
		params         RunParams
		wantErrContain string
	}{
		{
			name: "LoadSettings error",
			params: RunParams{
				LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
					return nil, errors.New("settings error")
				},
				ValidSettings: noopValidate,
			},
			wantErrContain: "failed to load settings",
		},
		{
			name: "ValidSettings error",
			params: RunParams{
				LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
					return &config.Settings{Transport: "sse"}, nil
				},
				ValidSettings: func(*config.Settings) error {
					return errors.New("validation error")
				},
			},
			wantErrContain: "invalid configuration",
		},
		{
			name: "CreateServer error",
			params: RunParams{
				LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
					return &config.Settings{Transport: "sse"}, nil
				},
				ValidSettings: noopValidate,
				CreateServer: func(*config.Settings) (*mcp.Server, func(), error) {
					return nil, nil, errors.New("create server error")
				},
			},
			wantErrContain: "create server error",
		},
		{
			name: "StartSSEServer error",
			params: RunParams{
				LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
					return &config.Settings{Transport: "sse"}, nil
				},
				ValidSettings: noopValidate,
				CreateServer: func(*config.Settings) (*mcp.Server, func(), error) {
					return nil, nil, nil
				},
				StartSSEServer: func(*mcp.Server, *config.Settings) error {
					return errors.New("sse start error")
				},
			},
			wantErrContain: "sse start error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RunWithDeps(context.Background(), tt.params, nil, "test")
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErrContain)
			}
			if !strings.Contains(err.Error(), tt.wantErrContain) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErrContain, err.Error())
			}
		})
	}
}

func TestRunWithDeps_Cleanup(t *testing.T) {
	cleanupCalled := false
	params := RunParams{
		LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
			return &config.Settings{Transport: "sse"}, nil
		},
		ValidSettings: noopValidate,
		CreateServer: func(*config.Settings) (*mcp.Server, func(), error) {
			return nil, func() { cleanupCalled = true }, nil
		},
		StartSSEServer: func(*mcp.Server, *config.Settings) error {
			return errors.New("intentional error to trigger cleanup")
		},
	}

	_ = RunWithDeps(context.Background(), params, nil, "test")

	if !cleanupCalled {
		t.Error("Cleanup was not called")
	}
}

func TestDefaultRunParams(t *testing.T) {
	params := DefaultRunParams()

	if params.LoadSettings == nil {
		t.Error("LoadSettings is nil")
	}
	if params.ValidSettings == nil {
		t.Error("ValidSettings is nil")
	}
	if params.StartSSEServer == nil {
		t.Error("StartSSEServer is nil")
	}
	if params.CreateServer == nil {
		t.Error("CreateServer is nil")
	}
}

func TestRunWithDeps_StdioWithDefaultTransport(t *testing.T) {
	params := RunParams{
		LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
			return &config.Settings{Transport: "stdio"}, nil
		},
		ValidSettings: noopValidate,
		CreateServer: func(*config.Settings) (*mcp.Server, func(), error) {
			impl := &mcp.Implementation{Name: "test", Version: "1.0"}
			server := mcp.NewServer(impl, nil)
			return server, nil, nil
		},
		CustomIOTransport: nil,
	}

	// Use a cancelled context to avoid hanging on stdio
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunWithDeps(ctx, params, nil, "test")

	// We expect an error because the context is cancelled
	if err == nil {
		t.Log("No error returned (unexpected)")
	}
}

func TestRunWithDeps_StdioWithCustomTransport(t *testing.T) {
	transportUsed := false
	customTransport := &mockTransport{
		connectCalled: &transportUsed,
	}

	params := RunParams{
		LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
			return &config.Settings{Transport: "stdio"}, nil
		},
		ValidSettings: noopValidate,
		CreateServer: func(*config.Settings) (*mcp.Server, func(), error) {
			impl := &mcp.Implementation{Name: "test", Version: "1.0"}
			server := mcp.NewServer(impl, nil)
			return server, nil, nil
		},
		CustomIOTransport: customTransport,
	}

	// Use a cancelled context to avoid hanging
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = RunWithDeps(ctx, params, nil, "test")

	if !transportUsed {
		t.Error("Custom transport Connect was not called")
	}
}

func TestNewProvider_Local(t *testing.T) {
	settings := engineSettings(t)

	provider, err := NewProvider(settings)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if provider.Dimension() != 64 {
		t.Errorf("Expected dimension 64, got %d", provider.Dimension())
	}
}

func TestNewProvider_OpenAI(t *testing.T) {
	settings := engineSettings(t)
	settings.Embedding.Provider = config.EmbeddingProviderOpenAI
	settings.Embedding.APIKey = "sk-test"
	settings.Embedding.Model = "text-embedding-3-small"

	provider, err := NewProvider(settings)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := provider.(*embedding.OpenAIProvider); !ok {
		t.Errorf("Expected OpenAI provider, got %T", provider)
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	settings := engineSettings(t)
	settings.Embedding.Provider = "bogus"

	_, err := NewProvider(settings)
	if err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestEngineOptions(t *testing.T) {
	settings := engineSettings(t)
	settings.Engine.ChunkSize = 200
	settings.Engine.ChunkOverlap = 25
	settings.Engine.TopK = 7
	settings.Engine.HighThreshold = 90

	opts := EngineOptions(settings)

	if opts.Chunker.ChunkSize != 200 {
		t.Errorf("Expected chunk size 200, got %d", opts.Chunker.ChunkSize)
	}
	if opts.Chunker.ChunkOverlap != 25 {
		t.Errorf("Expected chunk overlap 25, got %d", opts.Chunker.ChunkOverlap)
	}
	if opts.Matcher.TopK != 7 {
		t.Errorf("Expected top-k 7, got %d", opts.Matcher.TopK)
	}
	if opts.Calibrator.HighThreshold != 90 {
		t.Errorf("Expected high threshold 90, got %v", opts.Calibrator.HighThreshold)
	}
}

func TestEngineOptions_LargeTopKWidensEquipmentRetrieval(t *testing.T) {
	settings := engineSettings(t)
	settings.Engine.TopK = 10

	opts := EngineOptions(settings)

	if opts.Matcher.EquipmentTopK < opts.Matcher.TopK {
		t.Errorf("EquipmentTopK = %d below TopK = %d", opts.Matcher.EquipmentTopK, opts.Matcher.TopK)
	}
	eng, err := NewEngine(context.Background(), settings)
	if err != nil {
		t.Fatalf("NewEngine with top-k 10 failed: %v", err)
	}
	if err := eng.Close(); err != nil {
		t.Errorf("Failed to close engine: %v", err)
	}
}

func TestCreateMCPServer(t *testing.T) {
	settings := engineSettings(t)

	server, cleanup, err := CreateMCPServer(settings)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if server == nil {
		t.Error("Expected server to be created")
	}
	if cleanup != nil {
		cleanup()
	}
}

// mockTransport implements mcp.Transport for testing
type mockTransport struct {
	connectCalled *bool
}

func (m *mockTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	if m.connectCalled != nil {
		*m.connectCalled = true
	}
	return nil, errors.New("mock transport - no real connection")
}
