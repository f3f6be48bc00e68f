package parser

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"

	"hemicycle.dev/plenary/internal/parties"
)

// SpeechRecord is one contiguous utterance by one speaker, as scanned from
// the transcript's plain-text rendering.
type SpeechRecord struct {
	Order          int
	SpeakerName    string
	PoliticalGroup string
	Title          string
	Body           string
}

// The four anchored opening patterns, tried in order per line. The dash
// after the header varies between en dash, em dash, and hyphen across
// transcript vintages.
var (
	// "<Name>, <Role>. – <Body>"
	openNameRole = regexp.MustCompile(`^(\p{Lu}[^,(–—]{0,79}?),\s*([^.(]{1,80}?)\.\s*[–—-]\s+(.+)$`)
	// "<Name> (<Tag>). – <Body>"
	openNameTag = regexp.MustCompile(`^(\p{Lu}[^,(]{0,79}?)\s*\(([^)]{1,60})\)\.\s*[–—-]\s+(.+)$`)
	// "<Name> (<Tag>), <Role>. – <Body>"
	openNameTagRole = regexp.MustCompile(`^(\p{Lu}[^,(]{0,79}?)\s*\(([^)]{1,60})\),\s*([^.]{1,80}?)\.\s*[–—-]\s+(.+)$`)
	// "<Title>. – <Body>"
	openTitleOnly = regexp.MustCompile(`^(\p{Lu}[^.,(]{0,59}?)\.\s*[–—-]\s+(.+)$`)
)

// ExtractSpeeches renders the document to plain text and scans it
// line-by-line, opening a new speech whenever a line matches one of the
// anchored speaker patterns. Lines matching nothing extend the open speech.
// An empty result is not an error: the sitting is stored without speeches.
func ExtractSpeeches(doc *goquery.Document, rawHTML string) []SpeechRecord {
	lines := strings.Split(renderPlainText(doc, rawHTML), "\n")

	speeches := make([]SpeechRecord, 0, 64)
	var open *SpeechRecord
	var body strings.Builder

	flush := func() {
		if open == nil {
			return
		}
		open.Body = strings.TrimSpace(body.String())
		if open.Body != "" {
			speeches = append(speeches, *open)
		}
		open = nil
		body.Reset()
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if record, opening := matchOpening(line); opening {
			flush()
			record.Order = len(speeches) + 1
			open = &record
			continue
		}

		if open != nil {
			if body.Len() > 0 {
				body.WriteByte('\n')
			}
			body.WriteString(line)
		}
	}
	flush()

	for i := range speeches {
		speeches[i].Order = i + 1
	}
	return speeches
}

func matchOpening(line string) (SpeechRecord, bool) {
	if m := openNameRole.FindStringSubmatch(line); m != nil {
		record := SpeechRecord{SpeakerName: strings.TrimSpace(m[1])}
		assignRole(&record, m[2])
		return withBody(record, m[3]), true
	}
	// Tag-with-role before bare tag: both start "<Name> (<Tag>" and only the
	// closing punctuation separates them.
	if m := openNameTagRole.FindStringSubmatch(line); m != nil {
		record := SpeechRecord{SpeakerName: strings.TrimSpace(m[1])}
		assignTag(&record, m[2])
		assignRole(&record, m[3])
		return withBody(record, m[4]), true
	}
	if m := openNameTag.FindStringSubmatch(line); m != nil {
		record := SpeechRecord{SpeakerName: strings.TrimSpace(m[1])}
		assignTag(&record, m[2])
		return withBody(record, m[3]), true
	}
	if m := openTitleOnly.FindStringSubmatch(line); m != nil {
		record := SpeechRecord{SpeakerName: strings.TrimSpace(m[1])}
		return withBody(record, m[2]), true
	}
	return SpeechRecord{}, false
}

func withBody(record SpeechRecord, firstLine string) SpeechRecord {
	record.Body = strings.TrimSpace(firstLine)
	return record
}

// assignTag routes a parenthesized tag to political_group when it names a
// known party acronym or carries an on-behalf marker, and to title otherwise.
func assignTag(record *SpeechRecord, tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	if parties.IsKnownAcronym(tag) || parties.ContainsOnBehalfMarker(tag) {
		record.PoliticalGroup = tag
		return
	}
	if record.Title == "" {
		record.Title = tag
	}
}

func assignRole(record *SpeechRecord, role string) {
	role = strings.TrimSpace(role)
	if role == "" {
		return
	}
	if parties.ContainsOnBehalfMarker(role) && record.PoliticalGroup == "" {
		record.PoliticalGroup = role
		return
	}
	if record.Title == "" {
		record.Title = role
	}
}

var transcriptBaseURL, _ = url.Parse("https://www.europarl.europa.eu/doceo/document/")

// renderPlainText produces one plain-text rendering of the document,
// preferring the main content container, then a readability extraction, then
// the whole body, then concatenated paragraphs.
func renderPlainText(doc *goquery.Document, rawHTML string) string {
	for _, selector := range []string{"#doc_EN", ".contents", "#content"} {
		if sel := doc.Find(selector); sel.Length() > 0 {
			if text := selectionLines(sel.First()); text != "" {
				return text
			}
		}
	}

	if article, err := readability.FromReader(bytes.NewReader([]byte(rawHTML)), transcriptBaseURL); err == nil {
		var rendered bytes.Buffer
		if err := article.RenderText(&rendered); err == nil {
			if text := CleanText(rendered.String()); text != "" {
				return text
			}
		}
	}

	if sel := doc.Find("body"); sel.Length() > 0 {
		if text := selectionLines(sel.First()); text != "" {
			return text
		}
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.Join(strings.Fields(p.Text()), " "); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n")
}

var blockBoundary = regexp.MustCompile(`(?i)</(p|div|td|tr|table|h[1-6]|li)>|<br\s*/?>`)

// selectionLines renders a selection to text with block elements becoming
// line breaks, so the speech scanner sees one logical line per block.
func selectionLines(sel *goquery.Selection) string {
	inner, err := sel.Html()
	if err != nil {
		return CleanText(sel.Text())
	}
	withBreaks := blockBoundary.ReplaceAllString(inner, "\n")
	lines := strings.Split(withBreaks, "\n")
	for i, line := range lines {
		lines[i] = StripTags(line)
	}
	return CleanText(strings.Join(lines, "\n"))
}
