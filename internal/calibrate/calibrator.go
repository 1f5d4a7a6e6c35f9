// Package calibrate fuses similarity and contextual signals into a
// calibrated confidence and an explainable repeal verdict.
package calibrate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fieldscope/specmatch/internal/domain"
)

// Options holds the decision thresholds. They are configuration rather than
// constants so a two-state deployment can collapse REVIEW_RECOMMENDED into a
// neighbor by aligning the thresholds.
type Options struct {
	// HighThreshold is the minimum confidence for REPEALABLE.
	HighThreshold float64

	// MediumThreshold is the minimum confidence for REVIEW_RECOMMENDED.
	MediumThreshold float64

	// MinMatches is the minimum supporting match count for REPEALABLE.
	MinMatches int
}

// DefaultOptions returns the calibration defaults.
func DefaultOptions() Options {
	return Options{
		HighThreshold:   85,
		MediumThreshold: 60,
		MinMatches:      2,
	}
}

// Validate checks option sanity.
func (o Options) Validate() error {
	if o.HighThreshold < 0 || o.HighThreshold > 100 {
		return fmt.Errorf("HighThreshold must be within [0, 100], got %v", o.HighThreshold)
	}
	if o.MediumThreshold < 0 || o.MediumThreshold > o.HighThreshold {
		return fmt.Errorf("MediumThreshold must be within [0, HighThreshold], got %v", o.MediumThreshold)
	}
	if o.MinMatches < 1 {
		return fmt.Errorf("MinMatches must be at least 1, got %d", o.MinMatches)
	}
	return nil
}

// baseMapping is the single source of truth converting the best cosine
// similarity into a base confidence. Breakpoints are checked top-down.
var baseMapping = []struct {
	MinSimilarity float64
	Confidence    float64
}{
	{0.85, 95},
	{0.75, 85},
	{0.60, 70},
	{0.45, 55},
	{0.30, 40},
}

// floorConfidence is the base confidence below the lowest breakpoint.
const floorConfidence = 20

// BaseConfidence maps a similarity score through the staged table.
func BaseConfidence(similarity float64) float64 {
	for _, row := range baseMapping {
		if similarity >= row.MinSimilarity {
			return row.Confidence
		}
	}
	return floorConfidence
}

// Stage is one named, independently testable adjustment in the calibration
// pipeline. Apply takes the running confidence and returns the adjusted one.
type Stage struct {
	Name  string
	Apply func(confidence float64, inf domain.Infraction, matches []domain.MatchResult) float64
}

// MatchCountBoost corroborates the base score with the number of supporting
// matches: three or more multiply by 1.2, two by 1.1.
func MatchCountBoost(confidence float64, _ domain.Infraction, matches []domain.MatchResult) float64 {
	switch {
	case len(matches) >= 3:
		return confidence * 1.2
	case len(matches) >= 2:
		return confidence * 1.1
	default:
		return confidence
	}
}

// DocumentRefBoost rewards an infraction whose extracted document reference
// matches a document number in any supporting chunk's metadata.
func DocumentRefBoost(confidence float64, inf domain.Infraction, matches []domain.MatchResult) float64 {
	if inf.DocumentRef == "" {
		return confidence
	}
	for _, m := range matches {
		if m.Chunk.DocumentNumber == inf.DocumentRef {
			return confidence * 1.12
		}
	}
	return confidence
}

// Entity patterns for the overlap bonus. Each distinct entity type shared
// verbatim between infraction and a supporting chunk earns a small additive
// bonus.
var (
	measurementPattern = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:feet|foot|ft|inches|inch|in\.|meters?|m\.|lbs?|pounds?)\b`)
	citationPattern    = regexp.MustCompile(`(?i)\b(?:g\.?o\.?\s*95|nesc|ansi|ieee|astm)\b`)
	numberPattern      = regexp.MustCompile(`\b\d{4,6}\b`)
)

const (
	entityBonusPerType = 5
	entityBonusCap     = 15
)

// EntityOverlapBonus adds entityBonusPerType for each entity type
// (measurement, standard citation, document number) found verbatim in both
// the infraction text and any supporting chunk, capped at entityBonusCap.
func EntityOverlapBonus(confidence float64, inf domain.Infraction, matches []domain.MatchResult) float64 {
	patterns := []*regexp.Regexp{measurementPattern, citationPattern, numberPattern}

	bonus := 0.0
	for _, pattern := range patterns {
		entities := pattern.FindAllString(inf.RawText, -1)
		if len(entities) == 0 {
			continue
		}
		if anyChunkContains(matches, entities) {
			bonus += entityBonusPerType
		}
	}
	if bonus > entityBonusCap {
		bonus = entityBonusCap
	}
	return confidence + bonus
}

func anyChunkContains(matches []domain.MatchResult, entities []string) bool {
	for _, m := range matches {
		lower := strings.ToLower(m.Chunk.Text)
		for _, entity := range entities {
			if strings.Contains(lower, strings.ToLower(strings.TrimSpace(entity))) {
				return true
			}
		}
	}
	return false
}

// equipmentTerms feed the category boost. Mirrors the extraction vocabulary.
var equipmentTerms = []string{
	"pole", "transformer", "crossarm", "conductor", "insulator",
	"guy", "anchor", "ground rod", "cutout", "arrester", "riser",
}

// CategoryBoost rewards equipment-flagged infractions whose supporting
// chunks mention the same equipment vocabulary. Applied only when the
// equipment flag was set during extraction.
func CategoryBoost(confidence float64, inf domain.Infraction, matches []domain.MatchResult) float64 {
	if !inf.EquipmentRelated {
		return confidence
	}

	lowerInf := strings.ToLower(inf.RawText)
	for _, m := range matches {
		lowerChunk := strings.ToLower(m.Chunk.Text)
		for _, term := range equipmentTerms {
			if strings.Contains(lowerInf, term) && strings.Contains(lowerChunk, term) {
				return confidence * 1.12
			}
		}
	}
	return confidence
}

// Pipeline returns the ordered adjustment stages applied after the base
// mapping. Order matters: multiplicative boosts precede the additive
// entity bonus except for the category boost, which closes the pipeline.
func Pipeline() []Stage {
	return []Stage{
		{Name: "match_count_boost", Apply: MatchCountBoost},
		{Name: "document_ref_boost", Apply: DocumentRefBoost},
		{Name: "entity_overlap_bonus", Apply: EntityOverlapBonus},
		{Name: "category_boost", Apply: CategoryBoost},
	}
}

// Calibrator converts ranked matches into repeal verdicts.
type Calibrator struct {
	opts   Options
	stages []Stage
}

// NewCalibrator creates a Calibrator, validating the options.
func NewCalibrator(opts Options) (*Calibrator, error) {
	if opts.HighThreshold == 0 && opts.MediumThreshold == 0 {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Calibrator{opts: opts, stages: Pipeline()}, nil
}

// Calibrate runs the scoring pipeline for one infraction and applies the
// decision policy. Deterministic: identical inputs yield identical verdicts.
func (c *Calibrator) Calibrate(inf domain.Infraction, matches []domain.MatchResult) domain.RepealVerdict {
	if len(matches) == 0 {
		return domain.RepealVerdict{
			Infraction: inf,
			Status:     domain.StatusValidInfraction,
			Confidence: 0,
			Reasons:    []string{"No strong spec matches found — infraction appears valid."},
		}
	}

	confidence := BaseConfidence(matches[0].Score)
	for _, stage := range c.stages {
		confidence = stage.Apply(confidence, inf, matches)
	}
	confidence = clamp(confidence, 0, 100)

	status := domain.StatusValidInfraction
	switch {
	case confidence >= c.opts.HighThreshold && len(matches) >= c.opts.MinMatches:
		status = domain.StatusRepealable
	case confidence >= c.opts.MediumThreshold:
		status = domain.StatusReviewRecommended
	}

	return domain.RepealVerdict{
		Infraction:     inf,
		Status:         status,
		Confidence:     confidence,
		Reasons:        renderReasons(matches),
		SpecReferences: specReferences(matches),
	}
}

// renderReasons formats the top three matches, strongest first.
func renderReasons(matches []domain.MatchResult) []string {
	limit := min(3, len(matches))
	reasons := make([]string, 0, limit)
	for _, m := range matches[:limit] {
		reasons = append(reasons, fmt.Sprintf("%s p.%d (%.0f%% similarity): %s",
			m.Chunk.Source, m.Chunk.Page, m.Score*100, snippet(m.Chunk.Text, 120)))
	}
	return reasons
}

// specReferences lists the distinct supporting sources in match order.
func specReferences(matches []domain.MatchResult) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, m := range matches {
		if !seen[m.Chunk.Source] {
			seen[m.Chunk.Source] = true
			refs = append(refs, m.Chunk.Source)
		}
	}
	return refs
}

func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= limit {
		return text
	}
	// Back off to a rune boundary so truncation never splits a multi-byte
	// character.
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
