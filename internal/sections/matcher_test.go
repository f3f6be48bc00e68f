package sections

import (
	"strings"
	"testing"

	"hemicycle.dev/plenary/internal/parser"
)

func testSections() []parser.Section {
	climate := "The Commission welcomes the report on climate change adaptation and the " +
		"resilience of coastal regions. Members debated flooding, drought and the " +
		"financing of adaptation measures across the Union."
	fisheries := "The common fisheries policy requires stronger control measures. Quota " +
		"management, landing obligations and the protection of small scale fleets were " +
		"discussed at length by the committee."
	return []parser.Section{
		{Title: "Climate change adaptation", Text: climate, TextNorm: parser.NormalizeText(climate)},
		{Title: "Fisheries control", Text: fisheries, TextNorm: parser.NormalizeText(fisheries)},
	}
}

func TestFindSubstringMatch(t *testing.T) {
	t.Parallel()

	m := NewMatcher(testSections())
	body := "Members debated flooding, drought and the financing of adaptation measures across the Union."
	match, ok := m.Find(body)
	if !ok {
		t.Fatal("expected a match")
	}
	if match.Index != 0 {
		t.Fatalf("expected climate section, got index %d", match.Index)
	}
	if match.Score != 1 {
		t.Fatalf("expected substring score 1, got %f", match.Score)
	}
}

func TestFindTokenOverlapMatch(t *testing.T) {
	t.Parallel()

	m := NewMatcher(testSections())
	// Shares vocabulary with the fisheries section but no 160-char window.
	body := "I want to speak about quota management and landing obligations, because control " +
		"measures for fisheries remain far too weak in several member states today."
	match, ok := m.Find(body)
	if !ok {
		t.Fatal("expected an overlap match")
	}
	if match.Index != 1 {
		t.Fatalf("expected fisheries section, got index %d", match.Index)
	}
	if match.Score < DefaultOverlapThreshold {
		t.Fatalf("score %f below threshold", match.Score)
	}
}

func TestFindShortBodyNeverMatches(t *testing.T) {
	t.Parallel()

	m := NewMatcher(testSections())
	if _, ok := m.Find("Thank you, Mr President."); ok {
		t.Fatal("expected no match for short body")
	}
}

func TestFindUnrelatedBodyNoMatch(t *testing.T) {
	t.Parallel()

	m := NewMatcher(testSections())
	body := strings.Repeat("zebra xylophone quantum kaleidoscope wanderlust ", 4)
	if match, ok := m.Find(body); ok {
		t.Fatalf("expected no match, got index %d score %f", match.Index, match.Score)
	}
}

func TestFindNoSections(t *testing.T) {
	t.Parallel()

	m := NewMatcher(nil)
	body := "Members debated flooding, drought and the financing of adaptation measures across the Union."
	if _, ok := m.Find(body); ok {
		t.Fatal("expected no match with no sections")
	}
}
