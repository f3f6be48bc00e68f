package db

import (
	"context"
	"fmt"
)

// requiredColumns lists columns whose absence makes a table unusable. When a
// stored table is missing one and cannot be repaired in place, the table is
// dropped and recreated; data is re-ingestable so the loss is acceptable, but
// only when the LOCALRUN gate is set.
var requiredColumns = map[string][]string{
	"sittings": {"id", "activity_date", "content"},
	"speeches": {"id", "sitting_id", "speech_order", "speech_content"},
	"members":  {"id", "label"},
}

var storeIndexes = []string{
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_speeches_sitting_order ON speeches(sitting_id, speech_order)",
	"CREATE INDEX IF NOT EXISTS idx_speeches_mep ON speeches(mep_id)",
	"CREATE INDEX IF NOT EXISTS idx_speeches_macro_topic ON speeches(macro_topic)",
	"CREATE INDEX IF NOT EXISTS idx_speeches_group_std_raw ON speeches(political_group_std, political_group)",
	"CREATE INDEX IF NOT EXISTS idx_speeches_language ON speeches(language)",
	"CREATE INDEX IF NOT EXISTS idx_speeches_macro_created ON speeches(macro_topic, created_at)",
	"CREATE INDEX IF NOT EXISTS idx_speeches_sitting_macro ON speeches(sitting_id, macro_topic)",
	"CREATE INDEX IF NOT EXISTS idx_speeches_group_macro ON speeches(political_group_std, macro_topic)",
	"CREATE INDEX IF NOT EXISTS idx_sittings_date ON sittings(activity_date)",
	"CREATE INDEX IF NOT EXISTS idx_members_country ON members(country)",
	"CREATE INDEX IF NOT EXISTS idx_members_group ON members(political_group)",
	"CREATE INDEX IF NOT EXISTS idx_members_current ON members(is_current)",
}

// migrate brings the schema up to date. AutoMigrate adds missing columns to
// existing tables; tables missing required columns are recreated when
// localRun permits. ANALYZE refreshes planner statistics at the end.
func (p *Pool) migrate(ctx context.Context, localRun bool) error {
	if p == nil || p.writer == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	w := p.writer.WithContext(ctx)
	migrator := w.Migrator()

	for table, columns := range requiredColumns {
		if !migrator.HasTable(table) {
			continue
		}
		missing := false
		model := modelForTable(table)
		for _, col := range columns {
			if !migrator.HasColumn(model, col) {
				missing = true
				break
			}
		}
		if !missing {
			continue
		}
		if !localRun {
			return fmt.Errorf("table %s is missing required columns; rerun with LOCALRUN=true to recreate it", table)
		}
		if err := migrator.DropTable(model); err != nil {
			return fmt.Errorf("drop table %s for recreation: %w", table, err)
		}
	}

	if err := w.AutoMigrate(autoMigrateModels()...); err != nil {
		return fmt.Errorf("auto-migrate models: %w", err)
	}

	for _, stmt := range storeIndexes {
		if err := w.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}

	if err := w.Exec("ANALYZE").Error; err != nil {
		return fmt.Errorf("refresh planner statistics: %w", err)
	}
	return nil
}

func modelForTable(table string) any {
	switch table {
	case "sittings":
		return &Sitting{}
	case "speeches":
		return &Speech{}
	case "members":
		return &Member{}
	case "pipeline_runs":
		return &PipelineRun{}
	default:
		return nil
	}
}
