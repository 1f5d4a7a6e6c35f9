package extract

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fieldscope/specmatch/internal/domain"
)

func TestExtract_StructuredSingleLine(t *testing.T) {
	e, _ := NewExtractor(Options{})

	infractions, err := e.Extract("Go-back: pole clearance only 10 feet over roadway\n")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(infractions) != 1 {
		t.Fatalf("got %d infractions, want 1", len(infractions))
	}

	inf := infractions[0]
	if inf.RawText != "pole clearance only 10 feet over roadway" {
		t.Errorf("RawText = %q", inf.RawText)
	}
	if inf.Category != CategoryStructured {
		t.Errorf("Category = %q, want structured", inf.Category)
	}
	if !inf.EquipmentRelated {
		t.Error("expected EquipmentRelated for text mentioning a pole")
	}
}

func TestExtract_StructuredMultiLine(t *testing.T) {
	e, _ := NewExtractor(Options{})

	text := "Violation: transformer mounting bracket is corroded\n" +
		"and the securing bolts show significant rust damage\n" +
		"\n" +
		"Unrelated closing remark.\n"

	infractions, err := e.Extract(text)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(infractions) != 1 {
		t.Fatalf("got %d infractions, want 1: %+v", len(infractions), infractions)
	}

	want := "transformer mounting bracket is corroded and the securing bolts show significant rust damage"
	if infractions[0].RawText != want {
		t.Errorf("RawText = %q, want %q", infractions[0].RawText, want)
	}
}

func TestExtract_MultiLineStopsAtNextKeyword(t *testing.T) {
	e, _ := NewExtractor(Options{})

	text := "Infraction: guy wire anchor is pulling out of the ground\n" +
		"Go-back: crossarm brace is missing on the north side\n"

	infractions, err := e.Extract(text)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(infractions) != 2 {
		t.Fatalf("got %d infractions, want 2: %+v", len(infractions), infractions)
	}
	if infractions[0].RawText != "guy wire anchor is pulling out of the ground" {
		t.Errorf("first RawText = %q", infractions[0].RawText)
	}
	if infractions[1].RawText != "crossarm brace is missing on the north side" {
		t.Errorf("second RawText = %q", infractions[1].RawText)
	}
}

func TestExtract_KeywordFallback(t *testing.T) {
	e, _ := NewExtractor(Options{})

	text := "Pole 4471 inspected on 3/14.\n" +
		"Observed damaged insulator on the top phase position.\n" +
		"Weather was clear during inspection.\n"

	infractions, err := e.Extract(text)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(infractions) != 1 {
		t.Fatalf("got %d infractions, want 1: %+v", len(infractions), infractions)
	}
	if infractions[0].Category != CategoryKeyword {
		t.Errorf("Category = %q, want keyword", infractions[0].Category)
	}
	if !strings.Contains(infractions[0].RawText, "damaged insulator") {
		t.Errorf("RawText = %q", infractions[0].RawText)
	}
}

func TestExtract_WhitespaceDedup(t *testing.T) {
	e, _ := NewExtractor(Options{})

	text := "Go-back: Missing   ground   rod at pole base\n" +
		"\n" +
		"Go-back: Missing ground rod at pole base\n"

	infractions, err := e.Extract(text)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(infractions) != 1 {
		t.Fatalf("got %d infractions, want 1: %+v", len(infractions), infractions)
	}
	if infractions[0].RawText != "Missing ground rod at pole base" {
		t.Errorf("RawText = %q", infractions[0].RawText)
	}
}

func TestExtract_CaseInsensitiveDedupKeepsFirst(t *testing.T) {
	e, _ := NewExtractor(Options{})

	text := "Go-back: Broken Crossarm On Buck Arm Position\n" +
		"\n" +
		"go-back: broken crossarm on buck arm position\n"

	infractions, err := e.Extract(text)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(infractions) != 1 {
		t.Fatalf("got %d infractions, want 1", len(infractions))
	}
	// First-seen casing is preserved.
	if infractions[0].RawText != "Broken Crossarm On Buck Arm Position" {
		t.Errorf("RawText = %q", infractions[0].RawText)
	}
}

func TestExtract_LengthWindow(t *testing.T) {
	e, _ := NewExtractor(Options{})

	// 15 characters, below the 20-character minimum.
	short := "Go-back: pole leaning\n" // description "pole leaning" is 12 chars
	infractions, err := e.Extract(short)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(infractions) != 0 {
		t.Errorf("short candidate should be excluded, got %+v", infractions)
	}

	long := "Go-back: " + strings.Repeat("conductor sag exceeds limit ", 50) + "\n"
	infractions, err = e.Extract(long)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(infractions) != 0 {
		t.Errorf("overlong candidate should be excluded, got %d", len(infractions))
	}
}

func TestExtract_DocumentRef(t *testing.T) {
	e, _ := NewExtractor(Options{})

	infractions, err := e.Extract("Go-back: grounding does not meet spec 022178 requirements\n")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(infractions) != 1 {
		t.Fatalf("got %d infractions, want 1", len(infractions))
	}
	if infractions[0].DocumentRef != "022178" {
		t.Errorf("DocumentRef = %q, want 022178", infractions[0].DocumentRef)
	}
}

func TestExtract_SeverityHeuristics(t *testing.T) {
	e, _ := NewExtractor(Options{})

	tests := []struct {
		text string
		want domain.Severity
	}{
		{"Go-back: exposed energized conductor creating safety hazard", domain.SeverityHigh},
		{"Go-back: minor cosmetic scuffing on pole identification tag", domain.SeverityLow},
		{"Go-back: crossarm brace installed at the wrong angle", domain.SeverityMedium},
	}

	for _, tt := range tests {
		infractions, err := e.Extract(tt.text + "\n")
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if len(infractions) != 1 {
			t.Fatalf("got %d infractions for %q", len(infractions), tt.text)
		}
		if infractions[0].Severity != tt.want {
			t.Errorf("Severity(%q) = %s, want %s", tt.text, infractions[0].Severity, tt.want)
		}
	}
}

func TestExtract_OrderedByPosition(t *testing.T) {
	e, _ := NewExtractor(Options{})

	text := "Observed corroded ground wire connection at the base.\n" +
		"Go-back: insulator cracked on middle phase of the crossing span\n"

	infractions, err := e.Extract(text)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(infractions) != 2 {
		t.Fatalf("got %d infractions, want 2: %+v", len(infractions), infractions)
	}
	if infractions[0].Category != CategoryKeyword {
		t.Errorf("first infraction category = %q, want keyword pass capture first", infractions[0].Category)
	}
	if infractions[0].Position > infractions[1].Position {
		t.Error("infractions not ordered by position")
	}
}

func TestExtract_CapsOutput(t *testing.T) {
	e, err := NewExtractor(Options{
		StructuredKeywords: []string{"go-back"},
		ScanKeywords:       []string{"clearance"},
		MinLength:          10,
		MaxLength:          1000,
		MaxInfractions:     3,
	})
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}

	var sb strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "Go-back: clearance deficiency number %d at structure\n\n", i)
	}

	infractions, err := e.Extract(sb.String())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(infractions) != 3 {
		t.Errorf("got %d infractions, want cap of 3", len(infractions))
	}
}

func TestExtract_EmptyText(t *testing.T) {
	e, _ := NewExtractor(Options{})

	_, err := e.Extract("   \n \t ")
	if !errors.Is(err, domain.ErrEmptyDocument) {
		t.Errorf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestExtract_NoInfractionsIsEmptyResult(t *testing.T) {
	e, _ := NewExtractor(Options{})

	infractions, err := e.Extract("All structures passed inspection without findings.\n")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(infractions) != 0 {
		t.Errorf("got %d infractions, want 0", len(infractions))
	}
}

func TestNewExtractor_InvalidOptions(t *testing.T) {
	_, err := NewExtractor(Options{MinLength: 50, MaxLength: 20, MaxInfractions: 10, StructuredKeywords: []string{"x"}})
	if err == nil {
		t.Error("Expected error for inverted length window")
	}
}
