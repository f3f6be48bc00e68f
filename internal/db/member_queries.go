package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertMembers writes roster members, updating names and country on
// conflict. politicalGroup is left alone here: it is derived from speeches by
// the affiliation normalizer, not taken from the roster.
func (p *Pool) UpsertMembers(ctx context.Context, members []Member) error {
	if len(members) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range members {
		members[i].UpdatedAt = now
		if members[i].CreatedAt.IsZero() {
			members[i].CreatedAt = now
		}
	}
	return p.WriteTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"label", "given_name", "family_name", "country", "is_current", "updated_at",
			}),
		}).CreateInBatches(members, 200).Error; err != nil {
			return fmt.Errorf("upsert members: %w", err)
		}
		return nil
	})
}

// CreateHistoricMember inserts one synthesized member row.
func (p *Pool) CreateHistoricMember(ctx context.Context, member Member) error {
	now := time.Now().UTC()
	member.Source = MemberSourceHistoric
	member.IsCurrent = false
	member.CreatedAt = now
	member.UpdatedAt = now
	if err := p.writer.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&member).Error; err != nil {
		return fmt.Errorf("create historic member %q: %w", member.Label, err)
	}
	return nil
}

// MaxMemberID returns the highest member id in the store, or 0 when empty.
func (p *Pool) MaxMemberID(ctx context.Context) (int64, error) {
	var maxID int64
	if err := p.reader.WithContext(ctx).
		Raw("SELECT COALESCE(MAX(id), 0) FROM members").Scan(&maxID).Error; err != nil {
		return 0, fmt.Errorf("query max member id: %w", err)
	}
	return maxID, nil
}

// MemberName pairs a member id with its display label for resolver lookups.
type MemberName struct {
	ID    int64
	Label string
}

// AllMemberNames returns every member id and label.
func (p *Pool) AllMemberNames(ctx context.Context) ([]MemberName, error) {
	rows, err := p.reader.WithContext(ctx).
		Raw("SELECT id, label FROM members ORDER BY id").Rows()
	if err != nil {
		return nil, fmt.Errorf("query member names: %w", err)
	}
	defer rows.Close()

	items := make([]MemberName, 0, 1024)
	for rows.Next() {
		var item MemberName
		if err := rows.Scan(&item.ID, &item.Label); err != nil {
			return nil, fmt.Errorf("scan member name: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkRosterCurrent flags exactly the given roster ids as current; everyone
// else from the api source is flagged not current. Historic members are never
// current.
func (p *Pool) MarkRosterCurrent(ctx context.Context, currentIDs []int64) error {
	return p.WriteTx(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := tx.Exec(
			"UPDATE members SET is_current = 0, updated_at = ? WHERE source = ?", now, MemberSourceAPI,
		).Error; err != nil {
			return fmt.Errorf("reset current flags: %w", err)
		}
		if len(currentIDs) == 0 {
			return nil
		}
		if err := tx.Exec(
			"UPDATE members SET is_current = 1, updated_at = ? WHERE id IN ?", now, currentIDs,
		).Error; err != nil {
			return fmt.Errorf("set current flags: %w", err)
		}
		return nil
	})
}

// DeriveMemberGroups rewrites each member's display affiliation to the modal
// political_group_std across their speeches, then collapses labels held by
// fewer than minMembers members to the literal Other.
func (p *Pool) DeriveMemberGroups(ctx context.Context, minMembers int) error {
	const derive = `
UPDATE members
SET political_group = COALESCE((
        SELECT sp.political_group_std
        FROM speeches sp
        WHERE sp.mep_id = members.id AND sp.political_group_std != ''
        GROUP BY sp.political_group_std
        ORDER BY COUNT(*) DESC
        LIMIT 1
    ), political_group),
    updated_at = ?
`
	const collapse = `
UPDATE members
SET political_group = 'Other', updated_at = ?
WHERE political_group != ''
  AND political_group != 'Other'
  AND political_group IN (
      SELECT political_group FROM members
      WHERE political_group != ''
      GROUP BY political_group
      HAVING COUNT(*) < ?
  )
`
	return p.WriteTx(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := tx.Exec(derive, now).Error; err != nil {
			return fmt.Errorf("derive member groups: %w", err)
		}
		if err := tx.Exec(collapse, now, minMembers).Error; err != nil {
			return fmt.Errorf("collapse small groups: %w", err)
		}
		return nil
	})
}
