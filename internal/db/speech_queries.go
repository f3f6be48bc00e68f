package db

import (
	"context"
	"fmt"
	"time"
)

// SpeechText is the slice of a speech row the language pass needs.
type SpeechText struct {
	ID      int64
	Content string
}

// SpeechesWithoutLanguage returns speeches whose language is unset. With all
// set, every speech is returned regardless of an existing code.
func (p *Pool) SpeechesWithoutLanguage(ctx context.Context, all bool) ([]SpeechText, error) {
	q := "SELECT id, speech_content FROM speeches"
	if !all {
		q += " WHERE language IS NULL OR language = ''"
	}
	q += " ORDER BY id"

	rows, err := p.reader.WithContext(ctx).Raw(q).Rows()
	if err != nil {
		return nil, fmt.Errorf("query speeches without language: %w", err)
	}
	defer rows.Close()

	items := make([]SpeechText, 0, 1024)
	for rows.Next() {
		var item SpeechText
		if err := rows.Scan(&item.ID, &item.Content); err != nil {
			return nil, fmt.Errorf("scan speech text: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateSpeechLanguage backfills the detected language for one speech. An
// empty code clears the column back to NULL.
func (p *Pool) UpdateSpeechLanguage(ctx context.Context, speechID int64, code string) error {
	var err error
	if code == "" {
		err = p.writer.WithContext(ctx).
			Exec("UPDATE speeches SET language = NULL, updated_at = ? WHERE id = ?", time.Now().UTC(), speechID).Error
	} else {
		err = p.writer.WithContext(ctx).
			Exec("UPDATE speeches SET language = ?, updated_at = ? WHERE id = ?", code, time.Now().UTC(), speechID).Error
	}
	if err != nil {
		return fmt.Errorf("update language for speech %d: %w", speechID, err)
	}
	return nil
}

// MacroTopicCount pairs a distinct macro topic with its speech count.
type MacroTopicCount struct {
	Topic string
	Count int
}

// DistinctMacroTopics returns every non-empty macro topic with its count,
// most frequent first.
func (p *Pool) DistinctMacroTopics(ctx context.Context) ([]MacroTopicCount, error) {
	const q = `
SELECT macro_topic, COUNT(*) AS n
FROM speeches
WHERE macro_topic IS NOT NULL AND macro_topic != ''
GROUP BY macro_topic
ORDER BY n DESC, macro_topic
`
	rows, err := p.reader.WithContext(ctx).Raw(q).Rows()
	if err != nil {
		return nil, fmt.Errorf("query distinct macro topics: %w", err)
	}
	defer rows.Close()

	items := make([]MacroTopicCount, 0, 128)
	for rows.Next() {
		var item MacroTopicCount
		if err := rows.Scan(&item.Topic, &item.Count); err != nil {
			return nil, fmt.Errorf("scan macro topic count: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RewriteMacroTopic collapses all variant labels into canonical with a single
// UPDATE and reports the number of rewritten rows.
func (p *Pool) RewriteMacroTopic(ctx context.Context, canonical string, variants []string) (int64, error) {
	if len(variants) == 0 {
		return 0, nil
	}
	res := p.writer.WithContext(ctx).
		Exec("UPDATE speeches SET macro_topic = ?, updated_at = ? WHERE macro_topic IN ?",
			canonical, time.Now().UTC(), variants)
	if res.Error != nil {
		return 0, fmt.Errorf("rewrite macro topic to %q: %w", canonical, res.Error)
	}
	return res.RowsAffected, nil
}

// SpeechAffiliation is the slice of a speech the affiliation normalizer reads.
type SpeechAffiliation struct {
	ID             int64
	PoliticalGroup string
	Raw            string
	Title          string
}

// ListSpeechAffiliations returns id, raw group, preserved raw, and title for
// every speech.
func (p *Pool) ListSpeechAffiliations(ctx context.Context) ([]SpeechAffiliation, error) {
	const q = `
SELECT id, political_group, political_group_raw, title
FROM speeches
ORDER BY id
`
	rows, err := p.reader.WithContext(ctx).Raw(q).Rows()
	if err != nil {
		return nil, fmt.Errorf("query speech affiliations: %w", err)
	}
	defer rows.Close()

	items := make([]SpeechAffiliation, 0, 1024)
	for rows.Next() {
		var item SpeechAffiliation
		if err := rows.Scan(&item.ID, &item.PoliticalGroup, &item.Raw, &item.Title); err != nil {
			return nil, fmt.Errorf("scan speech affiliation: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateSpeechAffiliation writes the normalized affiliation for one speech.
// The pre-normalization value is preserved in political_group_raw the first
// time the row is touched.
func (p *Pool) UpdateSpeechAffiliation(ctx context.Context, speechID int64, std, kind string) error {
	const q = `
UPDATE speeches
SET political_group_std = ?,
    political_group_kind = ?,
    political_group_raw = CASE WHEN political_group_raw = '' THEN political_group ELSE political_group_raw END,
    updated_at = ?
WHERE id = ?
`
	if err := p.writer.WithContext(ctx).Exec(q, std, kind, time.Now().UTC(), speechID).Error; err != nil {
		return fmt.Errorf("update affiliation for speech %d: %w", speechID, err)
	}
	return nil
}

// UnresolvedSpeaker groups unresolved speeches by speaker name.
type UnresolvedSpeaker struct {
	SpeakerName string
	Count       int
	// TopAffiliation is the speaker's most frequent raw political group.
	TopAffiliation string
}

// UnresolvedSpeakers returns speaker names with NULL mep_id, most speeches
// first, each with its modal raw affiliation.
func (p *Pool) UnresolvedSpeakers(ctx context.Context) ([]UnresolvedSpeaker, error) {
	const q = `
SELECT speaker_name,
       COUNT(*) AS n,
       COALESCE((
           SELECT s2.political_group
           FROM speeches s2
           WHERE s2.speaker_name = s1.speaker_name AND s2.political_group != ''
           GROUP BY s2.political_group
           ORDER BY COUNT(*) DESC
           LIMIT 1
       ), '') AS top_affiliation
FROM speeches s1
WHERE mep_id IS NULL AND speaker_name != ''
GROUP BY speaker_name
ORDER BY n DESC, speaker_name
`
	rows, err := p.reader.WithContext(ctx).Raw(q).Rows()
	if err != nil {
		return nil, fmt.Errorf("query unresolved speakers: %w", err)
	}
	defer rows.Close()

	items := make([]UnresolvedSpeaker, 0, 256)
	for rows.Next() {
		var item UnresolvedSpeaker
		if err := rows.Scan(&item.SpeakerName, &item.Count, &item.TopAffiliation); err != nil {
			return nil, fmt.Errorf("scan unresolved speaker: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// LinkSpeakerSpeeches assigns memberID to every unresolved speech by that
// speaker name and reports the number of linked rows.
func (p *Pool) LinkSpeakerSpeeches(ctx context.Context, speakerName string, memberID int64) (int64, error) {
	res := p.writer.WithContext(ctx).
		Exec("UPDATE speeches SET mep_id = ?, updated_at = ? WHERE speaker_name = ? AND mep_id IS NULL",
			memberID, time.Now().UTC(), speakerName)
	if res.Error != nil {
		return 0, fmt.Errorf("link speeches for %q: %w", speakerName, res.Error)
	}
	return res.RowsAffected, nil
}
