package langdetect

import "unicode"

const scriptRatioThreshold = 0.30

// detectByScript short-circuits detection for the two EU languages with
// dedicated scripts: a text that is 30% Greek-block characters is Greek, 30%
// Cyrillic is Bulgarian (the only Cyrillic EU language). Ratios count
// non-whitespace characters only.
func detectByScript(text string) (code string, confidence float64, ok bool) {
	var total, greek, cyrillic int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch {
		case unicode.Is(unicode.Greek, r):
			greek++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		}
	}
	if total == 0 {
		return "", 0, false
	}

	if float64(greek)/float64(total) >= scriptRatioThreshold {
		return "EL", 0.999, true
	}
	if float64(cyrillic)/float64(total) >= scriptRatioThreshold {
		return "BG", 0.995, true
	}
	return "", 0, false
}
