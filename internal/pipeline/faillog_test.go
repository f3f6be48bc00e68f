package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFailureLogAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "failures.log")
	log := NewFailureLog(path)
	defer log.Close()

	log.Record(CategoryFetch, "2024-09-02", "timeout after 3 attempts")
	log.Record(CategoryAI, "2024-09-03", "batch at offset 0 fell back")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	fields := strings.Split(lines[0], "\t")
	if len(fields) != 4 {
		t.Fatalf("expected 4 tab-separated fields, got %d: %q", len(fields), lines[0])
	}
	if fields[1] != CategoryFetch || fields[2] != "2024-09-02" {
		t.Fatalf("unexpected line: %q", lines[0])
	}
}

func TestFailureLogNilSafe(t *testing.T) {
	t.Parallel()

	var log *FailureLog
	log.Record(CategoryStore, "x", "y")

	empty := NewFailureLog("")
	empty.Record(CategoryStore, "x", "y")
	if err := empty.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
