package parser

import (
	"html"
	"regexp"
	"strings"
)

// Section is the slice of the transcript between two agenda headers.
type Section struct {
	Title         string
	DocIdentifier string
	Text          string
	TextNorm      string
}

var tagPattern = regexp.MustCompile(`(?s)<[^>]*>`)

// SplitSections slices the raw HTML document at the byte offset where each
// agenda topic's title first appears; the stretch between consecutive offsets
// is that topic's section. Topics whose title cannot be located in the raw
// document are skipped.
func SplitSections(rawHTML string, topics []AgendaTopic) []Section {
	type located struct {
		topic  AgendaTopic
		offset int
	}

	found := make([]located, 0, len(topics))
	searchFrom := 0
	for _, topic := range topics {
		needle := html.EscapeString(topic.Title)
		idx := strings.Index(rawHTML[searchFrom:], needle)
		if idx < 0 {
			// Escaped form absent; transcripts frequently embed titles raw.
			idx = strings.Index(rawHTML[searchFrom:], topic.Title)
		}
		if idx < 0 {
			continue
		}
		offset := searchFrom + idx
		found = append(found, located{topic: topic, offset: offset})
		searchFrom = offset + len(topic.Title)
	}

	sections := make([]Section, 0, len(found))
	for i, loc := range found {
		end := len(rawHTML)
		if i+1 < len(found) {
			end = found[i+1].offset
		}
		text := StripTags(rawHTML[loc.offset:end])
		sections = append(sections, Section{
			Title:         loc.topic.Title,
			DocIdentifier: loc.topic.DocIdentifier,
			Text:          text,
			TextNorm:      NormalizeText(text),
		})
	}
	return sections
}

// StripTags removes markup and collapses whitespace to single spaces.
func StripTags(fragment string) string {
	text := tagPattern.ReplaceAllString(fragment, " ")
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}
