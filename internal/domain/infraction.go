package domain

// Severity grades how serious an extracted infraction appears to be.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Infraction is a candidate non-compliance statement extracted from an audit
// document. It lives only for the duration of an analysis call.
type Infraction struct {
	// RawText is the candidate text as it appeared in the audit document,
	// with internal whitespace collapsed.
	RawText string

	// NormalizedText is the lowercased, whitespace-collapsed form used as
	// the deduplication key.
	NormalizedText string

	// Category is the extraction category, e.g. "structured" for
	// keyword-prefixed captures or "keyword" for scan-pass captures.
	Category string

	// Severity is the heuristic severity classification.
	Severity Severity

	// DocumentRef is the specification document number referenced by the
	// infraction text, if one was found. Empty otherwise.
	DocumentRef string

	// EquipmentRelated is set when the text mentions equipment-specific
	// terms. Such infractions get a deeper similarity search and may earn
	// a category boost during calibration.
	EquipmentRelated bool

	// Position is the byte offset of the first occurrence in the audit
	// text, used to keep output in source order.
	Position int
}
