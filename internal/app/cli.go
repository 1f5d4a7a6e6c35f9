package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("data-dir", "d", "", "Corpus data directory")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")

	flags.String("embedding-provider", "", "Embedding provider: local or openai")
	flags.String("embedding-model", "", "Embedding model name for the openai provider")
	flags.String("embedding-api-key", "", "API key for the openai provider")
	flags.Int("embedding-dimension", 0, "Vector dimension for the local provider")

	flags.Int("chunk-size", 0, "Target chunk size in words")
	flags.Int("chunk-overlap", 0, "Chunk overlap in words for the window fallback")
	flags.Int("embedding-batch-size", 0, "Number of chunks embedded per batch")
	flags.Float64("min-similarity-threshold", 0, "Minimum similarity for a match to count")
	flags.Int("top-k", 0, "Matches retrieved per infraction")
	flags.Float64("high-threshold", 0, "Confidence threshold for REPEALABLE")
	flags.Float64("medium-threshold", 0, "Confidence threshold for REVIEW_RECOMMENDED")
	flags.Int("max-infractions", 0, "Maximum infractions extracted per audit")
	flags.Bool("dedup-enabled", true, "Skip re-ingesting identical document content")
}
