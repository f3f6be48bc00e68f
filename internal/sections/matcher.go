// Package sections assigns speeches to the agenda section whose text they
// most strongly overlap.
package sections

import (
	"strings"

	"hemicycle.dev/plenary/internal/parser"
)

const (
	// DefaultOverlapThreshold is the minimum token-overlap score for a
	// match when no substring window hits.
	DefaultOverlapThreshold = 0.08

	windowSize = 160
	windowStep = 40
	maxWindows = 4

	minBodyChars = 50
	minTokenLen  = 4
)

// Match identifies the agenda section a speech belongs to.
type Match struct {
	Index   int
	Section parser.Section
	Score   float64
}

// Matcher matches speech bodies against one sitting's sections.
type Matcher struct {
	sections  []parser.Section
	threshold float64
}

func NewMatcher(secs []parser.Section) *Matcher {
	return &Matcher{sections: secs, threshold: DefaultOverlapThreshold}
}

// Find returns the best section for a speech body, or ok=false when nothing
// clears the bar. Bodies shorter than 50 normalized characters never match.
func (m *Matcher) Find(body string) (Match, bool) {
	norm := parser.NormalizeText(body)
	if len([]rune(norm)) < minBodyChars {
		return Match{}, false
	}

	if match, ok := m.substringPass(norm); ok {
		return match, true
	}
	return m.overlapPass(norm)
}

// substringPass slides fixed windows over the body and returns the earliest
// section containing any of them verbatim.
func (m *Matcher) substringPass(norm string) (Match, bool) {
	for _, window := range bodyWindows(norm) {
		for i, sec := range m.sections {
			if strings.Contains(sec.TextNorm, window) {
				return Match{Index: i, Section: sec, Score: 1}, true
			}
		}
	}
	return Match{}, false
}

// overlapPass scores each section by shared tokens longer than three
// characters, normalized by the size of the body's token set.
func (m *Matcher) overlapPass(norm string) (Match, bool) {
	bodyTokens := tokenSet(norm)
	if len(bodyTokens) == 0 {
		return Match{}, false
	}

	bestIdx := -1
	bestScore := 0.0
	for i, sec := range m.sections {
		secTokens := tokenSet(sec.TextNorm)
		hits := 0
		for tok := range bodyTokens {
			if secTokens[tok] {
				hits++
			}
		}
		score := float64(hits) / float64(len(bodyTokens))
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx < 0 || bestScore < m.threshold {
		return Match{}, false
	}
	return Match{Index: bestIdx, Section: m.sections[bestIdx], Score: bestScore}, true
}

func bodyWindows(norm string) []string {
	runes := []rune(norm)
	windows := make([]string, 0, maxWindows)
	for i := 0; i < maxWindows; i++ {
		start := i * windowStep
		if start >= len(runes) {
			break
		}
		end := start + windowSize
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, string(runes[start:end]))
	}
	return windows
}

func tokenSet(norm string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(norm) {
		if len(tok) >= minTokenLen {
			set[tok] = true
		}
	}
	return set
}
