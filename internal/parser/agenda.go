// Package parser decomposes a sitting's transcript HTML into agenda topics,
// document sections, and individually-attributed speeches.
package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// AgendaTopic is one debate item announced in the sitting's table of
// contents.
type AgendaTopic struct {
	Ordinal       string
	Title         string
	DocIdentifier string
}

var (
	ordinalPrefix      = regexp.MustCompile(`^\s*([\d.]+)\s*`)
	trailingParenNote  = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
	docIdentifierInURL = regexp.MustCompile(`/([A-Z]+[-_][\d-]+)_EN\.html`)
)

// ExtractAgendaTopics locates every table cell annotated as a document title
// (marked by the arrow-icon image) and returns the deduplicated topic list in
// document order.
func ExtractAgendaTopics(doc *goquery.Document) []AgendaTopic {
	topics := make([]AgendaTopic, 0, 32)
	seen := make(map[string]bool)

	doc.Find("td").Each(func(_ int, cell *goquery.Selection) {
		if cell.Find(`img[src*="arrow"]`).Length() == 0 {
			return
		}

		title := strings.Join(strings.Fields(cell.Text()), " ")
		if title == "" {
			return
		}

		var ordinal string
		if m := ordinalPrefix.FindStringSubmatch(title); m != nil {
			ordinal = strings.Trim(m[1], ".")
			title = strings.TrimSpace(title[len(m[0]):])
		}
		title = strings.TrimSpace(trailingParenNote.ReplaceAllString(title, ""))
		if title == "" {
			return
		}

		var docID string
		cell.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href, _ := link.Attr("href")
			if m := docIdentifierInURL.FindStringSubmatch(href); m != nil {
				docID = m[1]
				return false
			}
			return true
		})

		key := docID + "|" + NormalizeText(title)
		if seen[key] {
			return
		}
		seen[key] = true

		topics = append(topics, AgendaTopic{
			Ordinal:       ordinal,
			Title:         title,
			DocIdentifier: docID,
		})
	})

	return topics
}
