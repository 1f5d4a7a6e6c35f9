package domain

// SectionType classifies the structural region of a specification document
// that a chunk was extracted from.
type SectionType string

const (
	SectionPurpose SectionType = "purpose"
	SectionNotes   SectionType = "notes"
	SectionTable   SectionType = "table"
	SectionFigure  SectionType = "figure"
	SectionGeneral SectionType = "general"
)

// SpecChunk is a bounded span of specification text with structural metadata.
// Chunks are immutable once created and are owned by the corpus index manager.
type SpecChunk struct {
	// Text is the chunk content. Never empty.
	Text string `json:"text"`

	// Source identifies the document the chunk came from.
	// Example: "TD-2305P-01.pdf"
	Source string `json:"source"`

	// Page is the estimated 1-based page number within the source document.
	Page int `json:"page"`

	// SectionType is the structural classification of the chunk.
	SectionType SectionType `json:"section_type"`

	// DocumentNumber is the specification document identifier extracted from
	// the text, if any. Example: "022178"
	DocumentNumber string `json:"document_number,omitempty"`

	// Revision is the document revision extracted from the text, if any.
	Revision string `json:"revision,omitempty"`
}

// Bleve field name constants for consistent field references in queries and mappings.
const (
	ChunkFieldText           = "text"
	ChunkFieldSource         = "source"
	ChunkFieldPage           = "page"
	ChunkFieldSectionType    = "section_type"
	ChunkFieldDocumentNumber = "document_number"
)
