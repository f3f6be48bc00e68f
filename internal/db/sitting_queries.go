package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoreSitting writes a sitting and its speeches in one transaction. Speech
// rows are inserted in ascending speech_order; either the whole sitting
// commits or none of it does. With replaceExisting the previous speech rows
// for the sitting are removed first and the sitting row is overwritten.
func (p *Pool) StoreSitting(ctx context.Context, sitting Sitting, speeches []Speech, replaceExisting bool) error {
	if sitting.ID == "" {
		return fmt.Errorf("sitting id is empty")
	}
	if sitting.Content == "" {
		return fmt.Errorf("sitting %s has empty content", sitting.ID)
	}

	now := time.Now().UTC()
	sitting.UpdatedAt = now
	if sitting.CreatedAt.IsZero() {
		sitting.CreatedAt = now
	}

	return p.WriteTx(ctx, func(tx *gorm.DB) error {
		if replaceExisting {
			if err := tx.Exec("DELETE FROM speeches WHERE sitting_id = ?", sitting.ID).Error; err != nil {
				return fmt.Errorf("clear speeches for %s: %w", sitting.ID, err)
			}
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"activity_date", "content", "doc_identifier", "notation_id", "updated_at",
			}),
		}).Create(&sitting).Error; err != nil {
			return fmt.Errorf("upsert sitting %s: %w", sitting.ID, err)
		}

		for i := range speeches {
			speeches[i].ID = 0
			speeches[i].SittingID = sitting.ID
			speeches[i].SpeechOrder = i + 1
			speeches[i].CreatedAt = now
		}
		if len(speeches) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sitting_id"}, {Name: "speech_order"}},
			DoNothing: true,
		}).CreateInBatches(speeches, 200).Error; err != nil {
			return fmt.Errorf("insert speeches for %s: %w", sitting.ID, err)
		}
		return nil
	})
}

// SittingHTML returns the stored HTML blob for a sitting date.
func (p *Pool) SittingHTML(ctx context.Context, isoDate string) (string, error) {
	var content string
	err := p.reader.WithContext(ctx).
		Raw("SELECT content FROM sittings WHERE id = ?", SittingID(isoDate)).
		Scan(&content).Error
	if err != nil {
		return "", fmt.Errorf("read sitting content for %s: %w", isoDate, err)
	}
	if content == "" {
		return "", ErrNoRows
	}
	return content, nil
}

// LastFullyClassifiedDate returns the most recent sitting date whose every
// speech carries a macro topic, or "" when no such sitting exists.
func (p *Pool) LastFullyClassifiedDate(ctx context.Context) (string, error) {
	const q = `
SELECT s.activity_date
FROM sittings s
WHERE NOT EXISTS (
	SELECT 1 FROM speeches sp
	WHERE sp.sitting_id = s.id AND (sp.macro_topic IS NULL OR sp.macro_topic = '')
)
AND EXISTS (SELECT 1 FROM speeches sp2 WHERE sp2.sitting_id = s.id)
ORDER BY s.activity_date DESC
LIMIT 1
`
	var date string
	if err := p.reader.WithContext(ctx).Raw(q).Scan(&date).Error; err != nil {
		return "", fmt.Errorf("query last classified date: %w", err)
	}
	return date, nil
}

// StoredUsableDates returns dates already stored with usable content, i.e.
// at least MinSittingContentBytes bytes.
func (p *Pool) StoredUsableDates(ctx context.Context, startDate, endDate string) (map[string]bool, error) {
	rows, err := p.reader.WithContext(ctx).Raw(
		"SELECT activity_date FROM sittings WHERE activity_date BETWEEN ? AND ? AND LENGTH(content) >= ?",
		startDate, endDate, MinSittingContentBytes,
	).Rows()
	if err != nil {
		return nil, fmt.Errorf("query stored dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan stored date: %w", err)
		}
		dates[d] = true
	}
	return dates, rows.Err()
}

// UnclassifiedDates returns stored dates in range with at least one speech
// lacking a macro topic.
func (p *Pool) UnclassifiedDates(ctx context.Context, startDate, endDate string) (map[string]bool, error) {
	const q = `
SELECT DISTINCT s.activity_date
FROM sittings s
JOIN speeches sp ON sp.sitting_id = s.id
WHERE s.activity_date BETWEEN ? AND ?
  AND (sp.macro_topic IS NULL OR sp.macro_topic = '')
`
	rows, err := p.reader.WithContext(ctx).Raw(q, startDate, endDate).Rows()
	if err != nil {
		return nil, fmt.Errorf("query unclassified dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan unclassified date: %w", err)
		}
		dates[d] = true
	}
	return dates, rows.Err()
}

// RecordPipelineRun appends one row to the pipeline_runs ledger.
func (p *Pool) RecordPipelineRun(ctx context.Context, run PipelineRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if err := p.writer.WithContext(ctx).Create(&run).Error; err != nil {
		return fmt.Errorf("record pipeline run: %w", err)
	}
	return nil
}
