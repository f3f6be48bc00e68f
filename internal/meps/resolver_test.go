package meps

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"hemicycle.dev/plenary/internal/db"
)

func openTestPool(t *testing.T) *db.Pool {
	t.Helper()
	pool, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), db.Options{
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

func storeTestSpeeches(t *testing.T, pool *db.Pool, speakers []string) {
	t.Helper()
	speeches := make([]db.Speech, len(speakers))
	for i, name := range speakers {
		speeches[i] = db.Speech{
			SpeakerName:    name,
			PoliticalGroup: "PPE",
			SpeechContent:  "Mr President, I rise to speak on the matter before us today.",
		}
	}
	sitting := db.Sitting{
		ID:           db.SittingID("2024-09-02"),
		ActivityDate: "2024-09-02",
		Content:      strings.Repeat("<html>transcript</html>", 10),
	}
	if err := pool.StoreSitting(context.Background(), sitting, speeches, false); err != nil {
		t.Fatalf("store sitting: %v", err)
	}
}

func TestLinkOnlyMatchesExactAndReversed(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	ctx := context.Background()

	if err := pool.UpsertMembers(ctx, []db.Member{
		{ID: 100, Label: "Ana García Pérez", IsCurrent: true, Source: db.MemberSourceAPI},
		{ID: 101, Label: "Jens Jensen", IsCurrent: true, Source: db.MemberSourceAPI},
	}); err != nil {
		t.Fatalf("upsert members: %v", err)
	}

	storeTestSpeeches(t, pool, []string{
		"Ana García Pérez",   // exact
		"Pérez García Ana",   // reversed word order
		"Completely Unknown", // no roster entry
	})

	resolver := NewResolver(pool, zerolog.Nop())
	speakers, linked, err := resolver.LinkOnly(ctx)
	if err != nil {
		t.Fatalf("LinkOnly: %v", err)
	}
	if speakers != 2 {
		t.Fatalf("expected 2 resolved speakers, got %d", speakers)
	}
	if linked != 2 {
		t.Fatalf("expected 2 linked speeches, got %d", linked)
	}

	remaining, err := pool.UnresolvedSpeakers(ctx)
	if err != nil {
		t.Fatalf("UnresolvedSpeakers: %v", err)
	}
	if len(remaining) != 1 || remaining[0].SpeakerName != "Completely Unknown" {
		t.Fatalf("unexpected remaining speakers: %+v", remaining)
	}
}

func TestSynthesizeHistoricCreatesAndLinks(t *testing.T) {
	t.Parallel()

	pool := openTestPool(t)
	ctx := context.Background()

	storeTestSpeeches(t, pool, []string{"Jane Doe", "Jane Doe", "John Roe"})

	resolver := NewResolver(pool, zerolog.Nop())
	created, linked, err := resolver.SynthesizeHistoric(ctx)
	if err != nil {
		t.Fatalf("SynthesizeHistoric: %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 historic members, got %d", created)
	}
	if linked != 3 {
		t.Fatalf("expected 3 linked speeches, got %d", linked)
	}

	maxID, err := pool.MaxMemberID(ctx)
	if err != nil {
		t.Fatalf("MaxMemberID: %v", err)
	}
	if maxID <= db.HistoricIDFloor {
		t.Fatalf("expected historic ids above %d, got max %d", db.HistoricIDFloor, maxID)
	}

	remaining, err := pool.UnresolvedSpeakers(ctx)
	if err != nil {
		t.Fatalf("UnresolvedSpeakers: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no unresolved speakers, got %+v", remaining)
	}

	// Re-running must not create duplicates.
	created, linked, err = resolver.SynthesizeHistoric(ctx)
	if err != nil {
		t.Fatalf("second SynthesizeHistoric: %v", err)
	}
	if created != 0 || linked != 0 {
		t.Fatalf("expected idempotent re-run, got created=%d linked=%d", created, linked)
	}
}
