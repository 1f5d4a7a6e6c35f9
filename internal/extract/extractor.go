// Package extract finds candidate infractions in audit document text.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fieldscope/specmatch/internal/domain"
)

// Extraction categories recorded on Infraction.Category.
const (
	CategoryStructured = "structured"
	CategoryKeyword    = "keyword"
)

// Options controls extraction behavior.
type Options struct {
	// StructuredKeywords are the prefixes recognized by the structured
	// "keyword: description" pass.
	StructuredKeywords []string

	// ScanKeywords mark whole lines as candidates in the fallback pass.
	ScanKeywords []string

	// EquipmentKeywords flag an infraction as equipment-related, widening
	// its similarity search and enabling the category boost.
	EquipmentKeywords []string

	// MinLength and MaxLength bound candidate text size in characters.
	MinLength int
	MaxLength int

	// MaxInfractions caps the output, ordered by first occurrence.
	MaxInfractions int
}

// DefaultOptions returns the extraction defaults.
func DefaultOptions() Options {
	return Options{
		StructuredKeywords: []string{
			"go-back", "go back", "goback", "infraction", "violation",
			"issue", "non-compliance", "noncompliance", "deficiency", "defect",
		},
		ScanKeywords: []string{
			"clearance", "grounding", "ground rod", "guy wire", "crossarm",
			"insulator", "conductor", "missing", "damaged", "broken",
			"corroded", "leaning", "rotten", "exposed", "improper",
		},
		EquipmentKeywords: []string{
			"pole", "transformer", "crossarm", "conductor", "insulator",
			"guy", "anchor", "ground rod", "cutout", "arrester", "riser",
		},
		MinLength:      20,
		MaxLength:      1000,
		MaxInfractions: 100,
	}
}

// Validate checks option sanity.
func (o Options) Validate() error {
	if len(o.StructuredKeywords) == 0 && len(o.ScanKeywords) == 0 {
		return fmt.Errorf("at least one keyword list must be non-empty")
	}
	if o.MinLength < 0 || o.MaxLength <= o.MinLength {
		return fmt.Errorf("length window [%d, %d] is invalid", o.MinLength, o.MaxLength)
	}
	if o.MaxInfractions <= 0 {
		return fmt.Errorf("MaxInfractions must be positive, got %d", o.MaxInfractions)
	}
	return nil
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)

	// docRefPattern finds referenced specification document numbers, e.g.
	// "per spec 022178" or "see document no. 15083".
	docRefPattern = regexp.MustCompile(`(?i)\b(?:per|see|ref\.?|reference|spec(?:ification)?|standard|document|doc\.?)\s*(?:no\.?|number|#)?\s*[:#]?\s*(\d{4,6})\b`)
)

// Extractor finds, cleans, classifies, and deduplicates infractions.
type Extractor struct {
	opts       Options
	structured *regexp.Regexp
}

// NewExtractor creates an Extractor, validating the options.
func NewExtractor(opts Options) (*Extractor, error) {
	if opts.MaxLength == 0 {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &Extractor{
		opts:       opts,
		structured: buildStructuredPattern(opts.StructuredKeywords),
	}, nil
}

// buildStructuredPattern compiles the per-line "keyword: description"
// prefix. Description continuation across lines is handled by the scanner
// in structuredPass, since RE2 has no lookahead.
func buildStructuredPattern(keywords []string) *regexp.Regexp {
	quoted := make([]string, len(keywords))
	for i, kw := range keywords {
		quoted[i] = regexp.QuoteMeta(kw)
	}
	return regexp.MustCompile(`(?i)^[ \t]*(` + strings.Join(quoted, "|") + `)[ \t]*:[ \t]*(.*)$`)
}

// candidate is a raw capture awaiting post-processing.
type candidate struct {
	text     string
	category string
	position int
}

// structuredPass captures "keyword: description" entries. A description
// continues across lines until a blank line or the next keyword-prefixed
// line, so multi-line descriptions are kept whole.
func (e *Extractor) structuredPass(auditText string) []candidate {
	lines := strings.Split(auditText, "\n")

	// Line start offsets in the original text.
	offsets := make([]int, len(lines))
	pos := 0
	for i, line := range lines {
		offsets[i] = pos
		pos += len(line) + 1
	}

	var out []candidate
	i := 0
	for i < len(lines) {
		m := e.structured.FindStringSubmatch(lines[i])
		if m == nil {
			i++
			continue
		}

		start := offsets[i]
		parts := []string{m[2]}
		i++
		for i < len(lines) {
			if strings.TrimSpace(lines[i]) == "" {
				break
			}
			if e.structured.MatchString(lines[i]) {
				break
			}
			parts = append(parts, lines[i])
			i++
		}

		text := strings.TrimSpace(strings.Join(parts, " "))
		if text == "" {
			continue // empty capture, expected pattern noise
		}
		out = append(out, candidate{text: text, category: CategoryStructured, position: start})
	}
	return out
}

// keywordPass captures whole lines containing any scan keyword, catching
// infractions that do not follow the "keyword:" convention.
func (e *Extractor) keywordPass(auditText string) []candidate {
	var out []candidate
	offset := 0
	for _, line := range strings.Split(auditText, "\n") {
		// Structured-prefix lines are already covered by the other pass.
		if e.structured.MatchString(line) {
			offset += len(line) + 1
			continue
		}
		lower := strings.ToLower(line)
		for _, kw := range e.opts.ScanKeywords {
			if strings.Contains(lower, kw) {
				out = append(out, candidate{text: line, category: CategoryKeyword, position: offset})
				break
			}
		}
		offset += len(line) + 1
	}
	return out
}

// Extract runs both passes over auditText and returns deduplicated
// infractions in order of first occurrence. Text with no characters is
// domain.ErrEmptyDocument; text yielding no infractions is a valid empty
// result.
func (e *Extractor) Extract(auditText string) ([]domain.Infraction, error) {
	if strings.TrimSpace(auditText) == "" {
		return nil, fmt.Errorf("audit text: %w", domain.ErrEmptyDocument)
	}

	candidates := e.structuredPass(auditText)
	candidates = append(candidates, e.keywordPass(auditText)...)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].position < candidates[j].position
	})

	seen := make(map[string]bool)
	var out []domain.Infraction
	for _, c := range candidates {
		raw := collapseWhitespace(c.text)
		if len(raw) < e.opts.MinLength || len(raw) > e.opts.MaxLength {
			continue
		}

		normalized := strings.ToLower(raw)
		if seen[normalized] {
			continue
		}
		seen[normalized] = true

		inf := domain.Infraction{
			RawText:          raw,
			NormalizedText:   normalized,
			Category:         c.category,
			Severity:         classifySeverity(normalized),
			EquipmentRelated: containsAny(normalized, e.opts.EquipmentKeywords),
			Position:         c.position,
		}
		if m := docRefPattern.FindStringSubmatch(raw); m != nil {
			inf.DocumentRef = m[1]
		}

		out = append(out, inf)
		if len(out) >= e.opts.MaxInfractions {
			break
		}
	}

	return out, nil
}

// classifySeverity applies keyword heuristics to the normalized text.
func classifySeverity(normalized string) domain.Severity {
	switch {
	case containsAny(normalized, []string{"safety", "critical", "hazard", "danger", "energized", "exposed"}):
		return domain.SeverityHigh
	case containsAny(normalized, []string{"minor", "cosmetic", "faded", "label", "tag"}):
		return domain.SeverityLow
	default:
		return domain.SeverityMedium
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
