package topics

import (
	"fmt"
	"strings"
)

const systemPromptHeader = `You classify European Parliament agenda items into policy macro topics.

For every numbered title you receive, answer with one JSON object holding:
- "macro_topic": the best matching macro topic, copied verbatim from the list below when one fits. Only introduce a new macro topic when no listed topic applies; keep new names short, generic policy areas in English.
- "specific_focus": the narrower subject of the item (a country, programme, sector, or event), or "" when there is none.
- "confidence": your confidence between 0 and 1.

Respond with a single JSON array containing exactly one object per title, in the same order as the titles. No prose, no markdown.`

// buildSystemPrompt embeds the current taxonomy into the instructions.
func buildSystemPrompt(taxonomy []string) string {
	var b strings.Builder
	b.WriteString(systemPromptHeader)
	b.WriteString("\n\nKnown macro topics:\n")
	if len(taxonomy) == 0 {
		b.WriteString("(none yet)\n")
		return b.String()
	}
	for _, t := range taxonomy {
		b.WriteString("- ")
		b.WriteString(t)
		b.WriteByte('\n')
	}
	return b.String()
}

// buildUserPrompt renders one batch as a numbered list.
func buildUserPrompt(titles []string) string {
	var b strings.Builder
	b.WriteString("Classify these agenda item titles:\n")
	for i, title := range titles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
	}
	return b.String()
}

const normalizePromptHeader = `You deduplicate a list of policy macro-topic labels. Some labels are near-duplicates of each other (spelling, hyphenation, wording variants) and should be merged.

Respond with a single JSON array of merge rules. Each rule is an object:
- "canonical": the label every variant should be rewritten to. Prefer the most frequent existing label. Never invent qualifiers such as "(alt)" or "(other)".
- "variants": the labels to rewrite, not including the canonical itself.

Only propose rules for genuine duplicates. Labels without duplicates get no rule. No prose, no markdown.`

// buildNormalizePrompt lists every distinct label with its usage count.
func buildNormalizePrompt(labels []LabelCount) string {
	var b strings.Builder
	b.WriteString("Current macro-topic labels with speech counts:\n")
	for _, l := range labels {
		fmt.Fprintf(&b, "- %s (%d)\n", l.Label, l.Count)
	}
	return b.String()
}
