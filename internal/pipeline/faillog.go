package pipeline

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// FailureLog appends one line per failed batch or store step: ISO timestamp,
// category, identifier, and cause, tab-separated.
type FailureLog struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Failure categories.
const (
	CategoryFetch = "fetch"
	CategoryParse = "parse"
	CategoryStore = "store"
	CategoryAI    = "ai"
)

func NewFailureLog(path string) *FailureLog {
	return &FailureLog{path: path}
}

// Record writes one failure line. Logging failures are swallowed: the
// failures file is an audit aid and must never abort the pipeline.
func (l *FailureLog) Record(category, id, cause string) {
	if l == nil || l.path == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return
		}
		l.file = f
	}
	fmt.Fprintf(l.file, "%s\t%s\t%s\t%s\n",
		time.Now().UTC().Format(time.RFC3339), category, id, cause)
}

// Close releases the underlying file.
func (l *FailureLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
