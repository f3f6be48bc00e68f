package langdetect

import (
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Result is one detection outcome. An empty Code means no decision.
type Result struct {
	Code       string
	Confidence float64
}

const (
	maxInputChars = 50_000
	minInputChars = 20

	wholeTextMin      = 0.60
	chunkVoteMin      = 0.72
	trigramConfidence = 0.75

	// Below this, a lingua candidate counts as weak during reconciliation.
	weakLinguaMax = 0.50
)

const (
	sourceLingua  = "lingua"
	sourceTrigram = "trigram"
)

type candidate struct {
	code   string
	conf   float64
	source string
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// Detect runs the ensemble over one speech body. Precedence: script
// heuristics, whole-text statistical classification, chunk voting, trigram
// distance, then reconciliation over every weak candidate.
func Detect(raw string) Result {
	text := preClean(raw)
	if len([]rune(text)) < minInputChars {
		return Result{}
	}

	if code, conf, ok := detectByScript(text); ok {
		return Result{Code: code, Confidence: conf}
	}

	var candidates []candidate

	if code, conf, ok := linguaWholeText(text); ok && IsEUCode(code) {
		if conf >= wholeTextMin {
			return Result{Code: code, Confidence: conf}
		}
		candidates = append(candidates, candidate{code: code, conf: conf, source: sourceLingua})
	}

	if code, mean, ok := linguaChunkVote(text); ok {
		if mean >= chunkVoteMin {
			return Result{Code: code, Confidence: mean}
		}
		candidates = append(candidates, candidate{code: code, conf: mean, source: sourceLingua})
	}

	if code, ok := trigramDetect(text); ok {
		candidates = append(candidates, candidate{code: code, conf: trigramConfidence, source: sourceTrigram})
	}

	return reconcile(candidates)
}

// trigramDetect is the second, independent classifier: trigram distance with
// the result restricted to the EU set.
func trigramDetect(text string) (string, bool) {
	info := whatlanggo.Detect(text)
	code := strings.ToUpper(info.Lang.Iso6391())
	if len(code) != 2 || !IsEUCode(code) {
		return "", false
	}
	return code, true
}

// reconcile decides between disagreeing weak candidates. Agreement between
// any two classifiers wins; otherwise lingua outranks the trigram classifier,
// except that a trigram EL or MT beats weak lingua answers (lingua has no
// Maltese model and confuses transliterated Greek).
func reconcile(candidates []candidate) Result {
	if len(candidates) == 0 {
		return Result{}
	}

	byCode := make(map[string][]candidate)
	for _, c := range candidates {
		byCode[c.code] = append(byCode[c.code], c)
	}
	var agreed Result
	for code, group := range byCode {
		if len(group) < 2 {
			continue
		}
		best := bestConfidence(group)
		if agreed.Code == "" || best > agreed.Confidence {
			agreed = Result{Code: code, Confidence: best}
		}
	}
	if agreed.Code != "" {
		return agreed
	}

	var topLingua, topTrigram candidate
	for _, c := range candidates {
		switch c.source {
		case sourceLingua:
			if c.conf > topLingua.conf {
				topLingua = c
			}
		case sourceTrigram:
			if c.conf > topTrigram.conf {
				topTrigram = c
			}
		}
	}

	if topTrigram.code == "EL" || topTrigram.code == "MT" {
		if topLingua.code == "" || topLingua.conf < weakLinguaMax {
			return Result{Code: topTrigram.code, Confidence: topTrigram.conf}
		}
	}
	if topLingua.code != "" {
		return Result{Code: topLingua.code, Confidence: topLingua.conf}
	}
	if topTrigram.code != "" {
		return Result{Code: topTrigram.code, Confidence: topTrigram.conf}
	}
	return Result{}
}

func bestConfidence(group []candidate) float64 {
	best := 0.0
	for _, c := range group {
		if c.conf > best {
			best = c.conf
		}
	}
	return best
}

// preClean strips markup remnants, collapses whitespace, and truncates to a
// bounded classification window.
func preClean(raw string) string {
	text := htmlTagPattern.ReplaceAllString(raw, " ")
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > maxInputChars {
		runes = runes[:maxInputChars]
	}
	return string(runes)
}
