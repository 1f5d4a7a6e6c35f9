// Package engine wires chunking, corpus indexing, extraction, matching and
// calibration behind a single API surface. One Engine owns one corpus
// directory; a process may hold several independent engines.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fieldscope/specmatch/internal/calibrate"
	"github.com/fieldscope/specmatch/internal/corpus"
	"github.com/fieldscope/specmatch/internal/domain"
	"github.com/fieldscope/specmatch/internal/embedding"
	"github.com/fieldscope/specmatch/internal/extract"
	"github.com/fieldscope/specmatch/internal/ingest"
	"github.com/fieldscope/specmatch/internal/lexical"
	"github.com/fieldscope/specmatch/internal/match"
)

// Options aggregates per-component options. Zero values select each
// component's defaults.
type Options struct {
	Chunker    ingest.Options
	Extractor  extract.Options
	Matcher    match.Options
	Calibrator calibrate.Options
	Corpus     corpus.Options
}

// DefaultOptions returns defaults for every component.
func DefaultOptions() Options {
	return Options{
		Chunker:    ingest.DefaultOptions(),
		Extractor:  extract.DefaultOptions(),
		Matcher:    match.DefaultOptions(),
		Calibrator: calibrate.DefaultOptions(),
		Corpus:     corpus.DefaultOptions(),
	}
}

// Status is a point-in-time corpus summary.
type Status struct {
	Dir         string   `json:"dir"`
	TotalChunks int      `json:"total_chunks"`
	Sources     []string `json:"sources"`
	ModelID     string   `json:"model_id"`
	Dimension   int      `json:"dimension"`
	LexicalDocs uint64   `json:"lexical_docs"`
}

// Engine is the core service handle.
type Engine struct {
	dir        string
	chunker    *ingest.Chunker
	extractor  *extract.Extractor
	matcher    *match.Matcher
	calibrator *calibrate.Calibrator
	corpus     *corpus.Manager
	lexical    *lexical.Index
}

// New opens or creates the corpus at dir and builds the component chain
// around it. Callers must Close the engine to release the lexical index.
func New(ctx context.Context, dir string, provider embedding.Provider, opts Options) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding provider cannot be nil")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create corpus directory: %w", err)
	}

	lex, err := lexical.Open(filepath.Join(dir, corpus.LexicalDirname))
	if err != nil {
		return nil, fmt.Errorf("failed to open lexical index: %w", err)
	}

	mgr, err := corpus.Open(ctx, dir, provider, opts.Corpus, lex)
	if err != nil {
		lex.Close()
		return nil, err
	}

	chunker, err := ingest.NewChunker(opts.Chunker)
	if err != nil {
		lex.Close()
		return nil, err
	}
	extractor, err := extract.NewExtractor(opts.Extractor)
	if err != nil {
		lex.Close()
		return nil, err
	}
	matcher, err := match.NewMatcher(provider, mgr, opts.Matcher)
	if err != nil {
		lex.Close()
		return nil, err
	}
	calibrator, err := calibrate.NewCalibrator(opts.Calibrator)
	if err != nil {
		lex.Close()
		return nil, err
	}

	slog.Info("Engine ready",
		"dir", dir,
		"model", mgr.ModelID(),
		"chunks", mgr.TotalChunks())

	return &Engine{
		dir:        dir,
		chunker:    chunker,
		extractor:  extractor,
		matcher:    matcher,
		calibrator: calibrator,
		corpus:     mgr,
		lexical:    lex,
	}, nil
}

// IngestDocument chunks the pages and indexes them under sourceName.
// Re-uploading identical content is a no-op reported via
// IngestResult.Deduplicated.
func (e *Engine) IngestDocument(ctx context.Context, pages []ingest.Page, sourceName string) (corpus.IngestResult, error) {
	chunks, err := e.chunker.Chunk(pages, sourceName)
	if err != nil {
		return corpus.IngestResult{}, err
	}

	result, err := e.corpus.Ingest(ctx, corpus.IngestRequest{
		SourceName:  sourceName,
		ContentHash: contentHash(pages),
		Chunks:      chunks,
	})
	if err != nil {
		return corpus.IngestResult{}, err
	}

	slog.Info("Document ingested",
		"source", sourceName,
		"chunks_added", result.ChunksAdded,
		"total_chunks", result.TotalChunks,
		"deduplicated", result.Deduplicated)
	return result, nil
}

// AnalyzeInfractions extracts infractions from audit text, matches each
// against the corpus and returns one calibrated verdict per infraction,
// in extraction order.
func (e *Engine) AnalyzeInfractions(ctx context.Context, auditText string) ([]domain.RepealVerdict, error) {
	infractions, err := e.extractor.Extract(auditText)
	if err != nil {
		return nil, err
	}
	if len(infractions) == 0 {
		return []domain.RepealVerdict{}, nil
	}

	matches, err := e.matcher.Match(ctx, infractions)
	if err != nil {
		return nil, err
	}

	verdicts := make([]domain.RepealVerdict, len(infractions))
	for i, inf := range infractions {
		verdicts[i] = e.calibrator.Calibrate(inf, matches[i])
	}
	return verdicts, nil
}

// SearchText runs a lexical full-text query over the corpus, optionally
// filtered to one source document.
func (e *Engine) SearchText(query, source string, limit int) ([]lexical.TextHit, error) {
	if e.corpus.TotalChunks() == 0 {
		return nil, domain.ErrIndexNotReady
	}
	return e.lexical.Search(query, source, limit)
}

// Status summarizes the corpus.
func (e *Engine) Status() Status {
	docs, err := e.lexical.DocCount()
	if err != nil {
		slog.Warn("Failed to read lexical doc count", "error", err)
	}
	return Status{
		Dir:         e.dir,
		TotalChunks: e.corpus.TotalChunks(),
		Sources:     e.corpus.SourceNames(),
		ModelID:     e.corpus.ModelID(),
		Dimension:   e.corpus.Dimension(),
		LexicalDocs: docs,
	}
}

// Rebuild re-embeds the corpus from the chunk store.
func (e *Engine) Rebuild(ctx context.Context) error {
	return e.corpus.RebuildFromChunks(ctx)
}

// Reset destroys the corpus contents.
func (e *Engine) Reset() error {
	return e.corpus.Reset()
}

// Close releases the lexical index. The vector artifacts are already
// persisted after each ingest batch.
func (e *Engine) Close() error {
	return e.lexical.Close()
}

// contentHash fingerprints the raw upload so identical re-uploads are
// detected before any embedding work.
func contentHash(pages []ingest.Page) string {
	h := sha256.New()
	for _, p := range pages {
		fmt.Fprintf(h, "%d\x1f%s\x1e", p.Number, p.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}
