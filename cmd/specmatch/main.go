package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fieldscope/specmatch/internal/app"
	"github.com/fieldscope/specmatch/internal/config"
	"github.com/fieldscope/specmatch/internal/engine"
	"github.com/fieldscope/specmatch/internal/ingest"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "specmatch"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Specification cross-reference MCP server",
		Long:    "specmatch indexes utility specification documents and determines whether audit infractions are repealable against them",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Flags(), version)
		},
	}

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	app.RegisterFlags(rootCmd.Flags())

	rootCmd.AddCommand(
		newServeCommand(version),
		newIngestCommand(),
		newAnalyzeCommand(),
		newStatusCommand(),
	)

	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

func newServeCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio or sse transport)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Flags(), version)
		},
	}
	app.RegisterFlags(cmd.Flags())
	return cmd
}

func newIngestCommand() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Index specification documents into the corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Flags(), func(ctx context.Context, eng *engine.Engine) error {
				for _, path := range args {
					name := source
					if name == "" {
						name = filepath.Base(path)
					}
					pages, err := readPages(path)
					if err != nil {
						return err
					}
					result, err := eng.IngestDocument(ctx, pages, name)
					if err != nil {
						return fmt.Errorf("failed to ingest %s: %w", path, err)
					}
					if result.Deduplicated {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: unchanged, skipped\n", name)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks indexed (%d total)\n", name, result.ChunksAdded, result.TotalChunks)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Source name to record (defaults to file basename)")
	app.RegisterFlags(cmd.Flags())
	return cmd
}

func newAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <audit-file>",
		Short: "Extract infractions from an audit file and print repeal verdicts as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Flags(), func(ctx context.Context, eng *engine.Engine) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read audit file: %w", err)
				}
				verdicts, err := eng.AnalyzeInfractions(ctx, string(data))
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(verdicts, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			})
		},
	}
	app.RegisterFlags(cmd.Flags())
	return cmd
}

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print corpus status as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Flags(), func(ctx context.Context, eng *engine.Engine) error {
				out, err := json.MarshalIndent(eng.Status(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			})
		},
	}
	app.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(flags *pflag.FlagSet, version string) error {
	return app.RunWithDeps(context.Background(), app.DefaultRunParams(), flags, version)
}

// withEngine loads settings from flags, opens the engine against the
// configured data directory, runs fn and closes the engine.
func withEngine(flags *pflag.FlagSet, fn func(context.Context, *engine.Engine) error) error {
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := config.ValidateSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()
	eng, err := app.NewEngine(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = eng.Close()
	}()

	return fn(ctx, eng)
}

// readPages loads a text document, splitting pages on form-feed characters
// when present. A file without form feeds is treated as a single page.
func readPages(path string) ([]ingest.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	parts := strings.Split(string(data), "\f")
	pages := make([]ingest.Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, ingest.Page{Number: i + 1, Text: part})
	}
	return pages, nil
}
