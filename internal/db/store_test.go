package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func openTestPool(t *testing.T) *Pool {
	t.Helper()
	pool, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), Options{
		LogLevel:    "error",
		Environment: "local",
		LocalRun:    true,
	})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func sampleSitting(isoDate string) Sitting {
	return Sitting{
		ID:           SittingID(isoDate),
		ActivityDate: isoDate,
		Content:      strings.Repeat("<html>plenary transcript</html>", 10),
	}
}

func sampleSpeeches(n int, macroTopic string) []Speech {
	speeches := make([]Speech, n)
	for i := range speeches {
		speeches[i] = Speech{
			SpeakerName:   "Speaker",
			SpeechContent: "Mr President, the proposal before us deserves careful scrutiny.",
			Topic:         "Agenda item",
			MacroTopic:    macroTopic,
		}
	}
	return speeches
}

func TestStoreSittingAssignsSpeechOrder(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	ctx := context.Background()

	if err := pool.StoreSitting(ctx, sampleSitting("2024-09-02"), sampleSpeeches(5, "Agriculture"), false); err != nil {
		t.Fatalf("StoreSitting: %v", err)
	}

	rows, err := pool.Reader().
		Raw("SELECT speech_order FROM speeches WHERE sitting_id = ? ORDER BY id", SittingID("2024-09-02")).Rows()
	if err != nil {
		t.Fatalf("query orders: %v", err)
	}
	defer rows.Close()

	want := 1
	for rows.Next() {
		var order int
		if err := rows.Scan(&order); err != nil {
			t.Fatalf("scan order: %v", err)
		}
		if order != want {
			t.Fatalf("expected speech_order %d, got %d", want, order)
		}
		want++
	}
	if want != 6 {
		t.Fatalf("expected 5 speeches, got %d", want-1)
	}
}

func TestStoreSittingReplaceExisting(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	ctx := context.Background()

	if err := pool.StoreSitting(ctx, sampleSitting("2024-09-02"), sampleSpeeches(5, ""), false); err != nil {
		t.Fatalf("first store: %v", err)
	}
	if err := pool.StoreSitting(ctx, sampleSitting("2024-09-02"), sampleSpeeches(3, "Agriculture"), true); err != nil {
		t.Fatalf("replace store: %v", err)
	}

	var count int
	if err := pool.Reader().
		Raw("SELECT COUNT(*) FROM speeches WHERE sitting_id = ?", SittingID("2024-09-02")).Scan(&count).Error; err != nil {
		t.Fatalf("count speeches: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 speeches after replace, got %d", count)
	}

	var sittings int
	if err := pool.Reader().Raw("SELECT COUNT(*) FROM sittings").Scan(&sittings).Error; err != nil {
		t.Fatalf("count sittings: %v", err)
	}
	if sittings != 1 {
		t.Fatalf("expected 1 sitting, got %d", sittings)
	}
}

func TestLastFullyClassifiedDate(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	ctx := context.Background()

	date, err := pool.LastFullyClassifiedDate(ctx)
	if err != nil {
		t.Fatalf("empty store: %v", err)
	}
	if date != "" {
		t.Fatalf("expected no date on empty store, got %q", date)
	}

	if err := pool.StoreSitting(ctx, sampleSitting("2024-09-02"), sampleSpeeches(2, "Agriculture"), false); err != nil {
		t.Fatalf("store classified: %v", err)
	}
	// Later sitting with one unclassified speech must not win.
	mixed := sampleSpeeches(2, "Agriculture")
	mixed[1].MacroTopic = ""
	if err := pool.StoreSitting(ctx, sampleSitting("2024-09-03"), mixed, false); err != nil {
		t.Fatalf("store mixed: %v", err)
	}

	date, err = pool.LastFullyClassifiedDate(ctx)
	if err != nil {
		t.Fatalf("LastFullyClassifiedDate: %v", err)
	}
	if date != "2024-09-02" {
		t.Fatalf("expected 2024-09-02, got %q", date)
	}

	unclassified, err := pool.UnclassifiedDates(ctx, "2024-09-01", "2024-09-30")
	if err != nil {
		t.Fatalf("UnclassifiedDates: %v", err)
	}
	if len(unclassified) != 1 || !unclassified["2024-09-03"] {
		t.Fatalf("expected only 2024-09-03 unclassified, got %v", unclassified)
	}

	stored, err := pool.StoredUsableDates(ctx, "2024-09-01", "2024-09-30")
	if err != nil {
		t.Fatalf("StoredUsableDates: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored dates, got %v", stored)
	}
}

func TestDeriveMemberGroupsCollapsesSmallGroups(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	ctx := context.Background()

	members := []Member{
		{ID: 1, Label: "Member One", Source: MemberSourceAPI},
		{ID: 2, Label: "Member Two", Source: MemberSourceAPI},
		{ID: 3, Label: "Member Three", Source: MemberSourceAPI},
	}
	if err := pool.UpsertMembers(ctx, members); err != nil {
		t.Fatalf("upsert members: %v", err)
	}

	speeches := sampleSpeeches(5, "Agriculture")
	for i := range speeches {
		id := int64(1)
		if i == 4 {
			id = 3 // the lone member of a small group
		} else if i >= 2 {
			id = 2
		}
		speeches[i].MEPID = &id
		speeches[i].PoliticalGroupStd = "PPE"
		if id == 3 {
			speeches[i].PoliticalGroupStd = "ESN"
		}
	}
	if err := pool.StoreSitting(ctx, sampleSitting("2024-09-02"), speeches, false); err != nil {
		t.Fatalf("store speeches: %v", err)
	}

	if err := pool.DeriveMemberGroups(ctx, 2); err != nil {
		t.Fatalf("DeriveMemberGroups: %v", err)
	}

	var groups []string
	rows, err := pool.Reader().Raw("SELECT political_group FROM members ORDER BY id").Rows()
	if err != nil {
		t.Fatalf("query groups: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			t.Fatalf("scan group: %v", err)
		}
		groups = append(groups, g)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 members, got %d", len(groups))
	}
	if groups[0] != "PPE" || groups[1] != "PPE" {
		t.Fatalf("expected PPE for members 1 and 2, got %v", groups)
	}
	if groups[2] != "Other" {
		t.Fatalf("expected lone ESN member collapsed to Other, got %q", groups[2])
	}
}

func TestUpsertMembersPreservesPoliticalGroup(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	ctx := context.Background()

	if err := pool.UpsertMembers(ctx, []Member{
		{ID: 7, Label: "Member Seven", PoliticalGroup: "PPE", Source: MemberSourceAPI},
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := pool.UpsertMembers(ctx, []Member{
		{ID: 7, Label: "Member Seven Renamed", Source: MemberSourceAPI},
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var label, group string
	row := pool.Reader().Raw("SELECT label, political_group FROM members WHERE id = 7").Row()
	if err := row.Scan(&label, &group); err != nil {
		t.Fatalf("scan member: %v", err)
	}
	if label != "Member Seven Renamed" {
		t.Fatalf("expected label updated, got %q", label)
	}
	if group != "PPE" {
		t.Fatalf("expected derived group preserved across roster sync, got %q", group)
	}
}

func TestSpeechOrderUniquePerSitting(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	ctx := context.Background()

	if err := pool.StoreSitting(ctx, sampleSitting("2024-09-02"), sampleSpeeches(5, "Agriculture"), false); err != nil {
		t.Fatalf("StoreSitting: %v", err)
	}

	// A direct duplicate of an existing order slot must hit the constraint.
	err := pool.Writer().Exec(
		"INSERT INTO speeches (sitting_id, speech_order, speaker_name, speech_content, created_at) VALUES (?, 3, 'Dup', 'dup', CURRENT_TIMESTAMP)",
		SittingID("2024-09-02"),
	).Error
	if err == nil {
		t.Fatalf("expected unique constraint violation for duplicate speech_order")
	}

	// Re-storing without replacement leaves the original rows in place.
	if err := pool.StoreSitting(ctx, sampleSitting("2024-09-02"), sampleSpeeches(5, "Trade"), false); err != nil {
		t.Fatalf("re-store: %v", err)
	}
	var count, trade int
	if err := pool.Reader().Raw("SELECT COUNT(*) FROM speeches").Scan(&count).Error; err != nil {
		t.Fatalf("count speeches: %v", err)
	}
	if err := pool.Reader().
		Raw("SELECT COUNT(*) FROM speeches WHERE macro_topic = 'Trade'").Scan(&trade).Error; err != nil {
		t.Fatalf("count trade: %v", err)
	}
	if count != 5 || trade != 0 {
		t.Fatalf("expected original 5 rows untouched, got count=%d trade=%d", count, trade)
	}
}
