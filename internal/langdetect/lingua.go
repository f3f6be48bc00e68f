package langdetect

import (
	"strings"
	"sync"

	lingua "github.com/pemistahl/lingua-go"
)

// euLinguaLanguages are the EU languages lingua ships models for. Maltese has
// no lingua model; the trigram classifier covers it.
var euLinguaLanguages = []lingua.Language{
	lingua.Bulgarian,
	lingua.Croatian,
	lingua.Czech,
	lingua.Danish,
	lingua.Dutch,
	lingua.English,
	lingua.Estonian,
	lingua.Finnish,
	lingua.French,
	lingua.German,
	lingua.Greek,
	lingua.Hungarian,
	lingua.Irish,
	lingua.Italian,
	lingua.Latvian,
	lingua.Lithuanian,
	lingua.Polish,
	lingua.Portuguese,
	lingua.Romanian,
	lingua.Slovak,
	lingua.Slovene,
	lingua.Spanish,
	lingua.Swedish,
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

func linguaDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(euLinguaLanguages...).
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}

// linguaWholeText classifies the full text once and returns the upper-case
// ISO-2 code with the detector's own confidence. ok is false when the
// detector declines to answer.
func linguaWholeText(text string) (code string, confidence float64, ok bool) {
	language, exists := linguaDetector().DetectLanguageOf(text)
	if !exists {
		return "", 0, false
	}
	code = strings.ToUpper(language.IsoCode639_1().String())
	if len(code) != 2 {
		return "", 0, false
	}
	confidence = linguaDetector().ComputeLanguageConfidence(text, language)
	return code, confidence, true
}

const chunkSize = 600

// linguaChunkVote splits the text into ~600-char chunks, classifies each,
// sums confidence per language, and returns the language with the highest
// mean chunk confidence.
func linguaChunkVote(text string) (code string, mean float64, ok bool) {
	runes := []rune(text)
	if len(runes) == 0 {
		return "", 0, false
	}

	type tally struct {
		sum   float64
		count int
	}
	tallies := make(map[string]*tally)

	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[start:end])

		values := linguaDetector().ComputeLanguageConfidenceValues(chunk)
		if len(values) == 0 {
			continue
		}
		top := values[0]
		chunkCode := strings.ToUpper(top.Language().IsoCode639_1().String())
		if !IsEUCode(chunkCode) {
			continue
		}
		t := tallies[chunkCode]
		if t == nil {
			t = &tally{}
			tallies[chunkCode] = t
		}
		t.sum += top.Value()
		t.count++
	}

	for candidateCode, t := range tallies {
		candidateMean := t.sum / float64(t.count)
		if candidateMean > mean {
			mean = candidateMean
			code = candidateCode
		}
	}
	return code, mean, code != ""
}
