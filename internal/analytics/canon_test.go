package analytics

import "testing"

func TestCanonCollapsesHyphenation(t *testing.T) {
	t.Parallel()

	c := newCanonicalizer()
	first := c.Canon("Audio-visual policy")
	second := c.Canon("Audiovisual policy")
	if first != second {
		t.Fatalf("expected collapse, got %q and %q", first, second)
	}
	if first != "Audio-visual policy" {
		t.Fatalf("expected first-seen spelling kept, got %q", first)
	}

	variants := c.Variants(first)
	if len(variants) != 2 {
		t.Fatalf("expected 2 variants, got %v", variants)
	}
}

func TestCanonUnifiesUnicodeDashes(t *testing.T) {
	t.Parallel()

	c := newCanonicalizer()
	first := c.Canon("EU–US relations")
	second := c.Canon("EU-US relations")
	if first != second {
		t.Fatalf("expected dash unification, got %q and %q", first, second)
	}
	if first != "EU-US relations" {
		t.Fatalf("expected ASCII hyphen in display label, got %q", first)
	}
}

func TestCanonDecodesEntities(t *testing.T) {
	t.Parallel()

	c := newCanonicalizer()
	got := c.Canon("Health &amp; safety")
	if got != "Health & safety" {
		t.Fatalf("expected entity decode, got %q", got)
	}
}

func TestCanonKeepsDistinctTopicsApart(t *testing.T) {
	t.Parallel()

	c := newCanonicalizer()
	a := c.Canon("Agriculture")
	b := c.Canon("Fisheries")
	if a == b {
		t.Fatalf("distinct topics collapsed: %q", a)
	}
}

func TestPeriodsForDate(t *testing.T) {
	t.Parallel()

	month, quarter, year, ok := periodsForDate("2024-09-02")
	if !ok {
		t.Fatal("expected valid date")
	}
	if month != "2024-09" || quarter != "2024-Q3" || year != "2024" {
		t.Fatalf("unexpected periods: %s %s %s", month, quarter, year)
	}

	if _, _, _, ok := periodsForDate("bad"); ok {
		t.Fatal("expected failure for malformed date")
	}
}
