package domain

// VerdictStatus is the outcome of a repeal determination.
type VerdictStatus string

const (
	// StatusRepealable means the infraction is likely dismissible against
	// the specification corpus.
	StatusRepealable VerdictStatus = "REPEALABLE"

	// StatusReviewRecommended means the evidence is suggestive but a human
	// should confirm.
	StatusReviewRecommended VerdictStatus = "REVIEW_RECOMMENDED"

	// StatusValidInfraction means no sufficient specification support was
	// found; the infraction stands.
	StatusValidInfraction VerdictStatus = "VALID_INFRACTION"
)

// MatchResult pairs an infraction with a corpus chunk and their similarity.
// Score is cosine similarity in [-1, 1]. Produced per query, never persisted.
type MatchResult struct {
	Infraction Infraction
	Chunk      SpecChunk
	Score      float64
}

// RepealVerdict is the explainable output of confidence calibration for a
// single infraction.
type RepealVerdict struct {
	Infraction Infraction

	Status VerdictStatus

	// Confidence is the calibrated confidence in percent, clamped to [0, 100].
	Confidence float64

	// Reasons holds up to three human-readable justifications, strongest first.
	Reasons []string

	// SpecReferences lists the source documents of the supporting chunks.
	SpecReferences []string
}
