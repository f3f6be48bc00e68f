package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hemicycle.dev/plenary/internal/db"
	"hemicycle.dev/plenary/internal/fetcher"
	"hemicycle.dev/plenary/internal/meps"
	"hemicycle.dev/plenary/internal/topics"
)

func timeNowISO() string {
	return time.Now().UTC().Format("2006-01-02")
}

func sittingFixture() string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html><head><title>Sitting of 2024-09-02</title></head>
<body>
<div id="doc_EN">
<table><tr><td><img src="/img/arrow_title.gif"/><a href="/doceo/document/A-10-2024-0012_EN.html">1. Climate change adaptation (debate)</a></td></tr></table>
`)
	climateSpeakers := []string{"García Pérez (PPE)", "Kowalski (ECR)", "Jensen (Renew)", "Rossi (S&amp;D)", "Müller (Verts/ALE)"}
	for i, sp := range climateSpeakers {
		fmt.Fprintf(&b, "<p>%s. – Madam President, climate change adaptation requires sustained funding for coastal regions and farmland, and speaker number %d insists the adaptation framework must cover flooding and drought alike.</p>\n", sp, i+1)
	}
	b.WriteString(`<table><tr><td><img src="/img/arrow_title.gif"/> 2. Fisheries control measures</td></tr></table>
`)
	fishSpeakers := []string{"Nielsen (PPE)", "Dubois (Renew)", "Kovács (ECR)", "Santos (S&amp;D)", "Virtanen (PPE)"}
	for i, sp := range fishSpeakers {
		fmt.Fprintf(&b, "<p>%s. – Mr President, fisheries control measures and quota enforcement remain far too weak, and speaker number %d demands modern monitoring of landing obligations across the fleet.</p>\n", sp, i+1)
	}
	b.WriteString("</div>\n</body></html>")
	return b.String()
}

// batchCompleter answers each batch with one classification per numbered
// title, or with garbage when broken.
type batchCompleter struct {
	broken bool
}

func (f *batchCompleter) Complete(_ context.Context, _ string, user string) (string, error) {
	if f.broken {
		return "the model refuses to answer in JSON today", nil
	}
	var count int
	for _, line := range strings.Split(user, "\n") {
		if strings.Contains(line, ". ") {
			if _, err := fmt.Sscanf(line, "%d.", new(int)); err == nil {
				count++
			}
		}
	}
	items := make([]topics.Classification, count)
	for i := range items {
		items[i] = topics.Classification{
			MacroTopic:    fmt.Sprintf("Policy Area %d", i+1),
			SpecificFocus: "Test focus",
			Confidence:    0.9,
		}
	}
	data, _ := json.Marshal(items)
	return string(data), nil
}

func newTestOrchestrator(t *testing.T, completer topics.Completer, baseURL string) (*Orchestrator, *db.Pool, string) {
	t.Helper()
	dir := t.TempDir()

	pool, err := db.Open(context.Background(), filepath.Join(dir, "primary.db"), db.Options{
		LogLevel:    "error",
		Environment: "local",
		LocalRun:    true,
	})
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	store := topics.NewStore(filepath.Join(dir, "macro_topics.json"))
	if _, err := store.Merge(context.Background(), []string{"General Affairs"}); err != nil {
		t.Fatalf("seed taxonomy: %v", err)
	}
	classifier := topics.NewClassifier(completer, store, 20, zerolog.Nop())

	failuresPath := filepath.Join(dir, "failures.log")
	failures := NewFailureLog(failuresPath)
	t.Cleanup(func() { failures.Close() })

	orch := New(
		pool,
		fetcher.New(fetcher.Options{BaseURL: baseURL}),
		classifier,
		meps.NewResolver(pool, zerolog.Nop()),
		failures,
		Options{FetchConcurrency: 4, AIWorkers: 4},
		zerolog.Nop(),
	)
	return orch, pool, failuresPath
}

func TestBulkStoresClassifiedSitting(t *testing.T) {
	t.Parallel()

	fixture := sittingFixture()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/doceo/document/CRE-10-2024-09-02_EN.html" {
			fmt.Fprint(w, fixture)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	orch, pool, _ := newTestOrchestrator(t, &batchCompleter{}, server.URL)
	ctx := context.Background()

	result, err := orch.Bulk(ctx, "2024-09-02", "2024-09-03", false)
	if err != nil {
		t.Fatalf("Bulk: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("expected processed=1, got %+v", result)
	}
	if result.Failed != 0 || result.AIFailed != 0 || result.FetchSkipped != 0 {
		t.Fatalf("expected clean run, got %+v", result)
	}

	var speechCount int
	if err := pool.Reader().Raw("SELECT COUNT(*) FROM speeches").Scan(&speechCount).Error; err != nil {
		t.Fatalf("count speeches: %v", err)
	}
	if speechCount != 10 {
		t.Fatalf("expected 10 speeches, got %d", speechCount)
	}

	var unclassified int
	if err := pool.Reader().
		Raw("SELECT COUNT(*) FROM speeches WHERE macro_topic = ''").Scan(&unclassified).Error; err != nil {
		t.Fatalf("count unclassified: %v", err)
	}
	if unclassified != 0 {
		t.Fatalf("expected every speech classified, %d missing macro_topic", unclassified)
	}

	var stdCount int
	if err := pool.Reader().
		Raw("SELECT COUNT(*) FROM speeches WHERE political_group_std = 'PPE'").Scan(&stdCount).Error; err != nil {
		t.Fatalf("count normalized groups: %v", err)
	}
	if stdCount != 3 {
		t.Fatalf("expected 3 PPE speeches, got %d", stdCount)
	}
}

func TestBulkStoresFallbackOnBrokenModel(t *testing.T) {
	t.Parallel()

	fixture := sittingFixture()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/doceo/document/CRE-10-2024-09-02_EN.html" {
			fmt.Fprint(w, fixture)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	orch, pool, failuresPath := newTestOrchestrator(t, &batchCompleter{broken: true}, server.URL)
	ctx := context.Background()

	result, err := orch.Bulk(ctx, "2024-09-02", "2024-09-02", false)
	if err != nil {
		t.Fatalf("Bulk: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("expected the sitting stored despite AI failure, got %+v", result)
	}
	if result.AIFailed != 1 {
		t.Fatalf("expected aiFailed=1, got %+v", result)
	}

	var fallback int
	if err := pool.Reader().
		Raw("SELECT COUNT(*) FROM speeches WHERE macro_topic = 'General Affairs'").Scan(&fallback).Error; err != nil {
		t.Fatalf("count fallback rows: %v", err)
	}
	if fallback != 10 {
		t.Fatalf("expected 10 fallback-labeled speeches, got %d", fallback)
	}

	data, err := os.ReadFile(failuresPath)
	if err != nil {
		t.Fatalf("read failures log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 failure line, got %d: %s", len(lines), data)
	}
	if !strings.Contains(lines[0], CategoryAI) || !strings.Contains(lines[0], "2024-09-02") {
		t.Fatalf("unexpected failure line: %s", lines[0])
	}
}

func TestBulkSkipsStoredDates(t *testing.T) {
	t.Parallel()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	orch, pool, _ := newTestOrchestrator(t, &batchCompleter{}, server.URL)
	ctx := context.Background()

	// A fully stored, classified sitting on the only date in range.
	sitting := db.Sitting{
		ID:           db.SittingID("2024-09-02"),
		ActivityDate: "2024-09-02",
		Content:      strings.Repeat("<html>stored transcript</html>", 20),
	}
	speeches := []db.Speech{{
		SpeakerName:   "Stored Speaker",
		SpeechContent: "Existing content",
		Topic:         "Existing topic",
		MacroTopic:    "Agriculture",
	}}
	if err := pool.StoreSitting(ctx, sitting, speeches, false); err != nil {
		t.Fatalf("store sitting: %v", err)
	}

	result, err := orch.Bulk(ctx, "2024-09-02", "2024-09-02", false)
	if err != nil {
		t.Fatalf("Bulk: %v", err)
	}
	if result.Processed != 0 || result.Failed != 0 {
		t.Fatalf("expected nothing to do, got %+v", result)
	}
	if calls != 0 {
		t.Fatalf("expected no network calls for stored date, got %d", calls)
	}
}

func TestRefreshOnCurrentStoreIsNoop(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	orch, pool, _ := newTestOrchestrator(t, &batchCompleter{}, server.URL)
	ctx := context.Background()

	// Last fully classified sitting is today, so there is nothing newer.
	today := timeNowISO()
	sitting := db.Sitting{
		ID:           db.SittingID(today),
		ActivityDate: today,
		Content:      strings.Repeat("<html>stored transcript</html>", 20),
	}
	speeches := []db.Speech{{
		SpeakerName:   "Stored Speaker",
		SpeechContent: "Existing content",
		Topic:         "Existing topic",
		MacroTopic:    "Agriculture",
	}}
	if err := pool.StoreSitting(ctx, sitting, speeches, false); err != nil {
		t.Fatalf("store sitting: %v", err)
	}

	result, err := orch.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.Processed != 0 {
		t.Fatalf("expected no work, got %+v", result)
	}
}

func TestBulkStoresSittingWithoutSpeeches(t *testing.T) {
	t.Parallel()

	// A real transcript page whose paragraphs match no speaker pattern.
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html><head><title>Sitting of 2024-09-02</title></head>
<body>
<div id="doc_EN">
<table><tr><td><img src="/img/arrow_title.gif"/> 1. Opening of the sitting</td></tr></table>
`)
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "<p>procedural announcement %d: the sitting resumed and the minutes of the previous part-session were approved without amendment.</p>\n", i+1)
	}
	b.WriteString("</div>\n</body></html>")
	fixture := b.String()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path == "/doceo/document/CRE-10-2024-09-02_EN.html" {
			fmt.Fprint(w, fixture)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	orch, pool, _ := newTestOrchestrator(t, &batchCompleter{}, server.URL)
	ctx := context.Background()

	result, err := orch.Bulk(ctx, "2024-09-02", "2024-09-02", false)
	if err != nil {
		t.Fatalf("Bulk: %v", err)
	}
	if result.Processed != 1 || result.Failed != 0 {
		t.Fatalf("expected the empty sitting processed, got %+v", result)
	}

	var sittings int
	if err := pool.Reader().Raw("SELECT COUNT(*) FROM sittings").Scan(&sittings).Error; err != nil {
		t.Fatalf("count sittings: %v", err)
	}
	if sittings != 1 {
		t.Fatalf("expected the sitting stored without speeches, got %d rows", sittings)
	}
	var speeches int
	if err := pool.Reader().Raw("SELECT COUNT(*) FROM speeches").Scan(&speeches).Error; err != nil {
		t.Fatalf("count speeches: %v", err)
	}
	if speeches != 0 {
		t.Fatalf("expected no speech rows, got %d", speeches)
	}

	// The stored date must not be re-fetched by a later run.
	fetchesSoFar := calls
	again, err := orch.Bulk(ctx, "2024-09-02", "2024-09-02", false)
	if err != nil {
		t.Fatalf("second Bulk: %v", err)
	}
	if again.Processed != 0 {
		t.Fatalf("expected nothing to do on re-run, got %+v", again)
	}
	if calls != fetchesSoFar {
		t.Fatalf("expected no re-fetch of the stored date, got %d extra calls", calls-fetchesSoFar)
	}
}
