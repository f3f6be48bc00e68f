package topics

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// fakeCompleter answers every batch by echoing one classification per
// numbered title, or fails when broken is set.
type fakeCompleter struct {
	broken  bool
	macro   string
	replies func(titles []string) string
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, user string) (string, error) {
	if f.broken {
		return "", fmt.Errorf("upstream unavailable")
	}
	titles := parseNumberedTitles(user)
	if f.replies != nil {
		return f.replies(titles), nil
	}
	items := make([]Classification, len(titles))
	for i := range titles {
		items[i] = Classification{MacroTopic: f.macro, SpecificFocus: titles[i], Confidence: 0.9}
	}
	data, _ := json.Marshal(items)
	return string(data), nil
}

func parseNumberedTitles(user string) []string {
	var titles []string
	for _, line := range strings.Split(user, "\n") {
		if i := strings.Index(line, ". "); i > 0 {
			if _, err := fmt.Sscanf(line[:i], "%d", new(int)); err == nil {
				titles = append(titles, line[i+2:])
			}
		}
	}
	return titles
}

func newTestClassifier(t *testing.T, completer Completer, batchSize int, seed []string) *Classifier {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "macro_topics.json"))
	if len(seed) > 0 {
		if _, err := store.Merge(context.Background(), seed); err != nil {
			t.Fatalf("seed taxonomy: %v", err)
		}
	}
	return NewClassifier(completer, store, batchSize, zerolog.Nop())
}

func TestClassifyBatchPreservesOrder(t *testing.T) {
	t.Parallel()

	titles := make([]string, 20)
	for i := range titles {
		titles[i] = fmt.Sprintf("Agenda item %d", i)
	}
	c := newTestClassifier(t, &fakeCompleter{macro: "Agriculture"}, 20, []string{"Agriculture"})

	classifications, failed := c.ClassifyBatch(context.Background(), titles)
	if failed {
		t.Fatal("expected clean batch")
	}
	if len(classifications) != 20 {
		t.Fatalf("expected 20 classifications, got %d", len(classifications))
	}
	for i, cl := range classifications {
		if cl.SpecificFocus != titles[i] {
			t.Fatalf("classification %d out of order: got focus %q", i, cl.SpecificFocus)
		}
	}
}

func TestClassifyBatchFallsBackOnBrokenResponse(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t, &fakeCompleter{broken: true}, 20, []string{"Agriculture", "Trade"})

	classifications, failed := c.ClassifyBatch(context.Background(), []string{"One", "Two", "Three"})
	if !failed {
		t.Fatal("expected the batch reported as failed")
	}
	if len(classifications) != 3 {
		t.Fatalf("expected 3 fallback classifications, got %d", len(classifications))
	}
	for i, cl := range classifications {
		if cl.MacroTopic != "Agriculture" {
			t.Fatalf("classification %d: expected first-topic fallback, got %q", i, cl.MacroTopic)
		}
		if cl.Reason != ReasonParseFailed {
			t.Fatalf("classification %d: expected reason %q, got %q", i, ReasonParseFailed, cl.Reason)
		}
		if cl.Confidence < 0.2 || cl.Confidence > 0.3 {
			t.Fatalf("classification %d: confidence %f outside fallback range", i, cl.Confidence)
		}
	}
}

func TestClassifyBatchRejectsWrongLength(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{replies: func(titles []string) string {
		return `[{"macro_topic": "Trade", "specific_focus": "", "confidence": 0.8}]`
	}}
	c := newTestClassifier(t, completer, 20, []string{"Trade"})

	classifications, failed := c.ClassifyBatch(context.Background(), []string{"One", "Two"})
	if !failed {
		t.Fatal("expected length mismatch to fail the batch")
	}
	if len(classifications) != 2 {
		t.Fatalf("expected fallback for every title, got %d", len(classifications))
	}
}

func TestClassifyBatchGrowsTaxonomy(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t, &fakeCompleter{macro: "Space Policy"}, 20, []string{"Agriculture"})

	classifications, failed := c.ClassifyBatch(context.Background(), []string{"Satellite programme funding"})
	if failed {
		t.Fatal("expected clean batch")
	}
	if classifications[0].MacroTopic != "Space Policy" {
		t.Fatalf("expected the model's topic kept, got %q", classifications[0].MacroTopic)
	}

	ok, err := c.store.Contains(context.Background(), "space policy")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !ok {
		t.Fatal("expected new topic persisted to store")
	}
}
