package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParsedSitting is the full decomposition of one transcript document.
type ParsedSitting struct {
	Topics   []AgendaTopic
	Sections []Section
	Speeches []SpeechRecord
}

// ParseSitting decomposes raw transcript HTML. A document with no agenda
// topics or no speeches parses successfully with empty slices; only a
// document the DOM parser cannot read at all fails.
func ParseSitting(rawHTML string) (*ParsedSitting, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, fmt.Errorf("empty document")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	topics := ExtractAgendaTopics(doc)
	return &ParsedSitting{
		Topics:   topics,
		Sections: SplitSections(rawHTML, topics),
		Speeches: ExtractSpeeches(doc, rawHTML),
	}, nil
}
