// Package ingest turns raw per-page specification text into structured,
// metadata-tagged chunks.
package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fieldscope/specmatch/internal/domain"
)

// Page is one page of extracted document text. Upstream extraction (PDF,
// OCR) supplies these; this package never parses binary formats.
type Page struct {
	Text   string
	Number int
}

// Options controls chunking behavior.
type Options struct {
	// ChunkSize is the word-window size used when a page has no section
	// boundaries.
	ChunkSize int

	// ChunkOverlap is the number of words shared between consecutive
	// fallback windows.
	ChunkOverlap int

	// MinChunkChars drops shorter chunks as noise.
	MinChunkChars int

	// MaxSectionWords flushes a prose section buffer once it grows past
	// this many words. Table and figure sections are allowed twice as many
	// so tabular data is not split mid-row.
	MaxSectionWords int
}

// DefaultOptions returns the chunking defaults.
func DefaultOptions() Options {
	return Options{
		ChunkSize:       300,
		ChunkOverlap:    50,
		MinChunkChars:   50,
		MaxSectionWords: 400,
	}
}

// Validate checks option sanity.
func (o Options) Validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("ChunkSize must be positive, got %d", o.ChunkSize)
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		return fmt.Errorf("ChunkOverlap must be in [0, ChunkSize), got %d", o.ChunkOverlap)
	}
	if o.MinChunkChars < 0 {
		return fmt.Errorf("MinChunkChars must not be negative, got %d", o.MinChunkChars)
	}
	if o.MaxSectionWords <= 0 {
		return fmt.Errorf("MaxSectionWords must be positive, got %d", o.MaxSectionWords)
	}
	return nil
}

// Section boundary patterns. A line matching one of these starts a new
// section of the associated type.
var (
	tablePattern   = regexp.MustCompile(`(?i)^\s*table\s+\d+`)
	figurePattern  = regexp.MustCompile(`(?i)^\s*figure\s+\d+`)
	purposePattern = regexp.MustCompile(`(?i)^\s*(?:\d+\.?\d*\s+)?purpose(?:\s+and\s+scope)?\b`)
	notesPattern   = regexp.MustCompile(`(?i)^\s*(?:\d+\.?\d*\s+)?(?:general\s+)?notes?\b\s*:?\s*$`)
	generalPattern = regexp.MustCompile(`(?i)^\s*(?:\d+\.?\d*\s+)?(?:references|scope|definitions|requirements|application|installation)\b\s*:?\s*$`)

	docNumberPattern = regexp.MustCompile(`(?i)\b(?:document|doc\.?|spec(?:ification)?|standard)\s*(?:no\.?|number|#)?\s*[:#]?\s*(\d{4,6})\b`)
	revisionPattern  = regexp.MustCompile(`(?i)\brev(?:ision)?\.?\s*[:#]?\s*([0-9]+[A-Za-z]?|[A-Z])\b`)
)

// Chunker splits paged document text into SpecChunks. It is a pure
// transformation with no side effects.
type Chunker struct {
	opts Options
}

// NewChunker creates a Chunker, validating the options.
func NewChunker(opts Options) (*Chunker, error) {
	if opts == (Options{}) {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{opts: opts}, nil
}

// Chunk converts pages into metadata-tagged chunks. Pages with empty text
// are skipped. A document producing zero chunks returns
// domain.ErrEmptyDocument rather than a silently empty result.
func (c *Chunker) Chunk(pages []Page, sourceName string) ([]domain.SpecChunk, error) {
	// Per-page cumulative character offsets drive page estimation.
	var fullText strings.Builder
	type pageSpan struct {
		start  int
		number int
	}
	var spans []pageSpan

	for _, page := range pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}
		spans = append(spans, pageSpan{start: fullText.Len(), number: page.Number})
		fullText.WriteString(text)
		fullText.WriteString("\n")
	}

	text := fullText.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("source %q: %w", sourceName, domain.ErrEmptyDocument)
	}

	pageAt := func(offset int) int {
		page := 1
		for _, span := range spans {
			if offset >= span.start {
				page = span.number
			} else {
				break
			}
		}
		if page < 1 {
			page = 1
		}
		return page
	}

	raw := c.splitSections(text)
	if len(raw) == 0 {
		raw = c.windowFallback(text)
	}

	chunks := make([]domain.SpecChunk, 0, len(raw))
	for _, r := range raw {
		body := strings.TrimSpace(r.text)
		if len(body) < c.opts.MinChunkChars {
			continue
		}

		chunk := domain.SpecChunk{
			Text:        body,
			Source:      sourceName,
			Page:        pageAt(r.offset),
			SectionType: r.sectionType,
		}
		if m := docNumberPattern.FindStringSubmatch(body); m != nil {
			chunk.DocumentNumber = m[1]
		}
		if m := revisionPattern.FindStringSubmatch(body); m != nil {
			chunk.Revision = m[1]
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("source %q: %w", sourceName, domain.ErrEmptyDocument)
	}
	return chunks, nil
}

// rawChunk is an unfiltered chunk with its starting character offset.
type rawChunk struct {
	text        string
	offset      int
	sectionType domain.SectionType
}

// boundaryType returns the section type a line introduces, or "" when the
// line is not a boundary.
func boundaryType(line string) (domain.SectionType, bool) {
	switch {
	case tablePattern.MatchString(line):
		return domain.SectionTable, true
	case figurePattern.MatchString(line):
		return domain.SectionFigure, true
	case purposePattern.MatchString(line):
		return domain.SectionPurpose, true
	case notesPattern.MatchString(line):
		return domain.SectionNotes, true
	case generalPattern.MatchString(line):
		return domain.SectionGeneral, true
	}
	return "", false
}

// splitSections scans for section boundaries and flushes the accumulated
// buffer on each one, tagged with the previous section's type. Returns nil
// when the text contains no boundaries at all, signalling the caller to use
// window fallback.
func (c *Chunker) splitSections(text string) []rawChunk {
	lines := strings.Split(text, "\n")

	var out []rawChunk
	var buf strings.Builder
	bufOffset := 0
	bufWords := 0
	current := domain.SectionGeneral
	foundBoundary := false
	offset := 0

	flush := func(nextOffset int) {
		if buf.Len() > 0 {
			out = append(out, rawChunk{text: buf.String(), offset: bufOffset, sectionType: current})
		}
		buf.Reset()
		bufWords = 0
		bufOffset = nextOffset
	}

	maxWords := func(st domain.SectionType) int {
		if st == domain.SectionTable || st == domain.SectionFigure {
			return c.opts.MaxSectionWords * 2
		}
		return c.opts.MaxSectionWords
	}

	for _, line := range lines {
		if st, ok := boundaryType(line); ok {
			foundBoundary = true
			flush(offset)
			current = st
		}

		buf.WriteString(line)
		buf.WriteString("\n")
		bufWords += len(strings.Fields(line))

		if bufWords >= maxWords(current) {
			flush(offset + len(line) + 1)
		}

		offset += len(line) + 1
	}
	flush(offset)

	if !foundBoundary {
		return nil
	}
	return out
}

// windowFallback produces fixed-size word windows with overlap, preserving
// cross-boundary context in documents without recognizable structure.
func (c *Chunker) windowFallback(text string) []rawChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	// Word start offsets for page estimation.
	offsets := make([]int, 0, len(words))
	pos := 0
	for _, w := range words {
		idx := strings.Index(text[pos:], w)
		offsets = append(offsets, pos+idx)
		pos += idx + len(w)
	}

	step := c.opts.ChunkSize - c.opts.ChunkOverlap
	var out []rawChunk
	for start := 0; start < len(words); start += step {
		end := start + c.opts.ChunkSize
		if end > len(words) {
			end = len(words)
		}
		out = append(out, rawChunk{
			text:        strings.Join(words[start:end], " "),
			offset:      offsets[start],
			sectionType: domain.SectionGeneral,
		})
		if end == len(words) {
			break
		}
	}
	return out
}
