package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// Embedding provider constants
const (
	EmbeddingProviderLocal  = "local"
	EmbeddingProviderOpenAI = "openai"
)

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// EmbeddingSettings configuration for the embedding provider
type EmbeddingSettings struct {
	Provider  string `mapstructure:"provider"` // EmbeddingProviderLocal or EmbeddingProviderOpenAI
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	Dimension int    `mapstructure:"dimension"` // local provider only
}

// EngineSettings configuration for chunking, matching and calibration
type EngineSettings struct {
	ChunkSize              int     `mapstructure:"chunk_size"`
	ChunkOverlap           int     `mapstructure:"chunk_overlap"`
	EmbeddingBatchSize     int     `mapstructure:"embedding_batch_size"`
	MinSimilarityThreshold float64 `mapstructure:"min_similarity_threshold"`
	TopK                   int     `mapstructure:"top_k"`
	HighThreshold          float64 `mapstructure:"high_threshold"`
	MediumThreshold        float64 `mapstructure:"medium_threshold"`
	MaxInfractions         int     `mapstructure:"max_infractions"`
	DedupEnabled           bool    `mapstructure:"dedup_enabled"`
}

// Settings application settings
type Settings struct {
	Transport string            `mapstructure:"transport"`
	Host      string            `mapstructure:"host"`
	Port      int               `mapstructure:"port"`
	DataDir   string            `mapstructure:"data_dir"`
	Auth      AuthSettings      `mapstructure:"auth"`
	Embedding EmbeddingSettings `mapstructure:"embedding"`
	Engine    EngineSettings    `mapstructure:"engine"`
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("auth.type", AuthTypeNone)

	// Embedding defaults
	v.SetDefault("embedding.provider", EmbeddingProviderLocal)
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 256)

	// Engine defaults
	v.SetDefault("engine.chunk_size", 300)
	v.SetDefault("engine.chunk_overlap", 50)
	v.SetDefault("engine.embedding_batch_size", 32)
	v.SetDefault("engine.min_similarity_threshold", 0.30)
	v.SetDefault("engine.top_k", 5)
	v.SetDefault("engine.high_threshold", 85)
	v.SetDefault("engine.medium_threshold", 60)
	v.SetDefault("engine.max_infractions", 100)
	v.SetDefault("engine.dedup_enabled", true)

	// Environment variables
	v.SetEnvPrefix("SPECMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config
	_ = v.BindEnv("auth.type", "SPECMATCH_AUTH_TYPE")
	_ = v.BindEnv("auth.basic.username", "SPECMATCH_AUTH_BASIC_USERNAME")
	_ = v.BindEnv("auth.basic.password", "SPECMATCH_AUTH_BASIC_PASSWORD")
	_ = v.BindEnv("auth.api_keys", "SPECMATCH_AUTH_API_KEYS")

	// Embedding env var bindings
	_ = v.BindEnv("embedding.provider", "SPECMATCH_EMBEDDING_PROVIDER")
	_ = v.BindEnv("embedding.model", "SPECMATCH_EMBEDDING_MODEL")
	_ = v.BindEnv("embedding.api_key", "SPECMATCH_EMBEDDING_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("embedding.dimension", "SPECMATCH_EMBEDDING_DIMENSION")

	// Engine env var bindings
	_ = v.BindEnv("engine.chunk_size", "SPECMATCH_ENGINE_CHUNK_SIZE")
	_ = v.BindEnv("engine.chunk_overlap", "SPECMATCH_ENGINE_CHUNK_OVERLAP")
	_ = v.BindEnv("engine.embedding_batch_size", "SPECMATCH_ENGINE_EMBEDDING_BATCH_SIZE")
	_ = v.BindEnv("engine.min_similarity_threshold", "SPECMATCH_ENGINE_MIN_SIMILARITY_THRESHOLD")
	_ = v.BindEnv("engine.top_k", "SPECMATCH_ENGINE_TOP_K")
	_ = v.BindEnv("engine.high_threshold", "SPECMATCH_ENGINE_HIGH_THRESHOLD")
	_ = v.BindEnv("engine.medium_threshold", "SPECMATCH_ENGINE_MEDIUM_THRESHOLD")
	_ = v.BindEnv("engine.max_infractions", "SPECMATCH_ENGINE_MAX_INFRACTIONS")
	_ = v.BindEnv("engine.dedup_enabled", "SPECMATCH_ENGINE_DEDUP_ENABLED")

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		_ = v.BindPFlag("transport", flags.Lookup("transport"))
		_ = v.BindPFlag("host", flags.Lookup("host"))
		_ = v.BindPFlag("port", flags.Lookup("port"))
		_ = v.BindPFlag("data_dir", flags.Lookup("data-dir"))
		_ = v.BindPFlag("auth.type", flags.Lookup("auth-type"))
		_ = v.BindPFlag("auth.basic.username", flags.Lookup("auth-basic-username"))
		_ = v.BindPFlag("auth.basic.password", flags.Lookup("auth-basic-password"))
		_ = v.BindPFlag("auth.api_keys", flags.Lookup("auth-api-keys"))

		// Embedding CLI flags
		_ = v.BindPFlag("embedding.provider", flags.Lookup("embedding-provider"))
		_ = v.BindPFlag("embedding.model", flags.Lookup("embedding-model"))
		_ = v.BindPFlag("embedding.api_key", flags.Lookup("embedding-api-key"))
		_ = v.BindPFlag("embedding.dimension", flags.Lookup("embedding-dimension"))

		// Engine CLI flags
		_ = v.BindPFlag("engine.chunk_size", flags.Lookup("chunk-size"))
		_ = v.BindPFlag("engine.chunk_overlap", flags.Lookup("chunk-overlap"))
		_ = v.BindPFlag("engine.embedding_batch_size", flags.Lookup("embedding-batch-size"))
		_ = v.BindPFlag("engine.min_similarity_threshold", flags.Lookup("min-similarity-threshold"))
		_ = v.BindPFlag("engine.top_k", flags.Lookup("top-k"))
		_ = v.BindPFlag("engine.high_threshold", flags.Lookup("high-threshold"))
		_ = v.BindPFlag("engine.medium_threshold", flags.Lookup("medium-threshold"))
		_ = v.BindPFlag("engine.max_infractions", flags.Lookup("max-infractions"))
		_ = v.BindPFlag("engine.dedup_enabled", flags.Lookup("dedup-enabled"))
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Handle explicit parsing of API keys if provided via env var as comma-separated string
	apiKeysEnv := os.Getenv("SPECMATCH_AUTH_API_KEYS")
	if apiKeysEnv != "" {
		if len(settings.Auth.APIKeys) == 0 || (len(settings.Auth.APIKeys) == 1 && strings.Contains(settings.Auth.APIKeys[0], ",")) {
			settings.Auth.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}

	// Trim spaces from API keys
	for i := range settings.Auth.APIKeys {
		settings.Auth.APIKeys[i] = strings.TrimSpace(settings.Auth.APIKeys[i])
	}

	// Expand home directory in data_dir
	settings.DataDir = expandHomeDir(settings.DataDir)

	return &settings, nil
}

// defaultDataDir returns the default corpus data directory
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".specmatch"
	}
	return filepath.Join(home, ".specmatch")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// ValidateSettings checks for conflicting or out-of-range configurations.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case "stdio", "sse":
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	if s.DataDir == "" {
		return errors.New("data-dir cannot be empty")
	}

	hasBasicCreds := s.Auth.Basic.Username != "" || s.Auth.Basic.Password != ""
	hasAPIKeys := len(s.Auth.APIKeys) > 0

	switch s.Auth.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if s.Auth.Basic.Username == "" || s.Auth.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + s.Auth.Type)
	}

	if err := validateEmbeddingSettings(&s.Embedding); err != nil {
		return err
	}

	return validateEngineSettings(&s.Engine)
}

// validateEmbeddingSettings validates the embedding provider configuration
func validateEmbeddingSettings(e *EmbeddingSettings) error {
	switch e.Provider {
	case EmbeddingProviderLocal:
		if e.Dimension <= 0 {
			return errors.New("embedding-dimension must be positive for the local provider")
		}
	case EmbeddingProviderOpenAI:
		if e.APIKey == "" {
			return errors.New("embedding-provider 'openai' requires an API key (SPECMATCH_EMBEDDING_API_KEY or OPENAI_API_KEY)")
		}
		if e.Model == "" {
			return errors.New("embedding-provider 'openai' requires a model name")
		}
	default:
		return errors.New("embedding-provider must be 'local' or 'openai', got: " + e.Provider)
	}
	return nil
}

// validateEngineSettings validates chunking, matching and calibration ranges
func validateEngineSettings(e *EngineSettings) error {
	if e.ChunkSize <= 0 {
		return errors.New("chunk-size must be positive")
	}
	if e.ChunkOverlap < 0 || e.ChunkOverlap >= e.ChunkSize {
		return errors.New("chunk-overlap must be non-negative and smaller than chunk-size")
	}
	if e.EmbeddingBatchSize <= 0 {
		return errors.New("embedding-batch-size must be positive")
	}
	if e.MinSimilarityThreshold < -1 || e.MinSimilarityThreshold > 1 {
		return fmt.Errorf("min-similarity-threshold must be within [-1, 1], got %v", e.MinSimilarityThreshold)
	}
	if e.TopK <= 0 {
		return errors.New("top-k must be positive")
	}
	if e.HighThreshold < 0 || e.HighThreshold > 100 {
		return fmt.Errorf("high-threshold must be within [0, 100], got %v", e.HighThreshold)
	}
	if e.MediumThreshold < 0 || e.MediumThreshold > e.HighThreshold {
		return errors.New("medium-threshold must be non-negative and not above high-threshold")
	}
	if e.MaxInfractions <= 0 {
		return errors.New("max-infractions must be positive")
	}
	return nil
}
