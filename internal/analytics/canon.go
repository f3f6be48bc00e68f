package analytics

import (
	"html"
	"strings"
)

// dashRunes are the Unicode dash variants unified to the ASCII hyphen before
// comparison.
var dashRunes = map[rune]bool{
	'‐': true, // hyphen
	'‑': true, // non-breaking hyphen
	'‒': true, // figure dash
	'–': true, // en dash
	'—': true, // em dash
	'−': true, // minus sign
}

// canonicalizer collapses near-identical topic labels ("Audio-visual" and
// "Audiovisual") to a single display label, keeping the first-seen spelling
// and recording the variants behind it.
type canonicalizer struct {
	display  map[string]string
	variants map[string]map[string]bool
}

func newCanonicalizer() *canonicalizer {
	return &canonicalizer{
		display:  make(map[string]string),
		variants: make(map[string]map[string]bool),
	}
}

// Canon returns the display label for a raw topic, registering it on first
// sight.
func (c *canonicalizer) Canon(raw string) string {
	cleaned := cleanLabel(raw)
	key := collapseKey(cleaned)
	if existing, ok := c.display[key]; ok {
		if c.variants[key] == nil {
			c.variants[key] = make(map[string]bool)
		}
		c.variants[key][cleaned] = true
		return existing
	}
	c.display[key] = cleaned
	c.variants[key] = map[string]bool{cleaned: true}
	return cleaned
}

// Variants lists every raw spelling seen for a display label.
func (c *canonicalizer) Variants(display string) []string {
	key := collapseKey(display)
	set := c.variants[key]
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	return out
}

// cleanLabel decodes HTML entities, unifies dash variants, and collapses
// whitespace. This is the display form.
func cleanLabel(raw string) string {
	decoded := html.UnescapeString(raw)
	var b strings.Builder
	b.Grow(len(decoded))
	for _, r := range decoded {
		if dashRunes[r] {
			b.WriteByte('-')
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// collapseKey is the aggregation key: lower-cased with hyphens and spaces
// removed, so hyphenation and spacing variants land on the same row.
func collapseKey(cleaned string) string {
	lower := strings.ToLower(cleaned)
	lower = strings.ReplaceAll(lower, "-", "")
	return strings.ReplaceAll(lower, " ", "")
}
