package lexical

import (
	"path/filepath"
	"testing"

	"github.com/fieldscope/specmatch/internal/domain"
)

func testIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "lexical.bleve"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func sampleChunks() []domain.SpecChunk {
	return []domain.SpecChunk{
		{
			Text:           "Table 1: Clearance requirements. Crossing over roads: minimum 18 feet.",
			Source:         "clearances.pdf",
			Page:           1,
			SectionType:    domain.SectionTable,
			DocumentNumber: "022178",
		},
		{
			Text:        "Ground rods shall be copper-clad steel, minimum 8 feet in length.",
			Source:      "grounding.pdf",
			Page:        3,
			SectionType: domain.SectionNotes,
		},
	}
}

func TestIndexChunks_AndSearch(t *testing.T) {
	ix := testIndex(t)

	if err := ix.IndexChunks(0, sampleChunks()); err != nil {
		t.Fatalf("IndexChunks failed: %v", err)
	}

	count, err := ix.DocCount()
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("DocCount = %d, want 2", count)
	}

	hits, err := ix.Search("clearance", "", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].ChunkIndex != 0 {
		t.Errorf("ChunkIndex = %d, want 0", hits[0].ChunkIndex)
	}
	if hits[0].Source != "clearances.pdf" {
		t.Errorf("Source = %q", hits[0].Source)
	}
	if hits[0].Page != 1 {
		t.Errorf("Page = %d, want 1", hits[0].Page)
	}
}

func TestSearch_SourceFilter(t *testing.T) {
	ix := testIndex(t)

	if err := ix.IndexChunks(0, sampleChunks()); err != nil {
		t.Fatalf("IndexChunks failed: %v", err)
	}

	hits, err := ix.Search("minimum feet", "grounding.pdf", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, hit := range hits {
		if hit.Source != "grounding.pdf" {
			t.Errorf("hit from %q leaked through source filter", hit.Source)
		}
	}
	if len(hits) == 0 {
		t.Error("expected at least one hit from grounding.pdf")
	}
}

func TestRebuild_ReplacesContent(t *testing.T) {
	ix := testIndex(t)

	if err := ix.IndexChunks(0, sampleChunks()); err != nil {
		t.Fatalf("IndexChunks failed: %v", err)
	}

	replacement := []domain.SpecChunk{{
		Text:        "Guy wires shall be grounded or insulated per the framing standard.",
		Source:      "guying.pdf",
		Page:        2,
		SectionType: domain.SectionGeneral,
	}}
	if err := ix.Rebuild(replacement); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	count, err := ix.DocCount()
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("DocCount = %d after rebuild, want 1", count)
	}

	hits, err := ix.Search("clearance", "", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("old content still searchable after rebuild: %+v", hits)
	}
}

func TestRebuild_Empty(t *testing.T) {
	ix := testIndex(t)

	if err := ix.IndexChunks(0, sampleChunks()); err != nil {
		t.Fatalf("IndexChunks failed: %v", err)
	}
	if err := ix.Rebuild(nil); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	count, err := ix.DocCount()
	if err != nil {
		t.Fatalf("DocCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("DocCount = %d after empty rebuild, want 0", count)
	}
}
