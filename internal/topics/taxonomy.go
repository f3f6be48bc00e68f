// Package topics classifies agenda-topic titles into a growing macro-topic
// taxonomy and maintains the on-disk topic list.
package topics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockRetryDelay = 100 * time.Millisecond
	// A lock held longer than this is treated as abandoned by a dead process.
	lockStaleAfter = 30 * time.Second
)

// Store holds the canonical macro-topic list: a JSON array of strings on
// disk, mutated only under a cross-process advisory lock. Processes cache
// the list between reads and invalidate after observing growth.
type Store struct {
	path     string
	lockPath string

	mu     sync.RWMutex
	cached []string
	loaded bool
}

func NewStore(path string) *Store {
	return &Store{
		path:     path,
		lockPath: path + ".lock",
	}
}

// Topics returns the cached taxonomy, loading it from disk on first use or
// after invalidation. The returned slice must not be mutated.
func (s *Store) Topics(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	if s.loaded {
		cached := s.cached
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cached, nil
	}
	list, err := readTopicsFile(s.path)
	if err != nil {
		return nil, err
	}
	s.cached = list
	s.loaded = true
	return s.cached, nil
}

// Invalidate drops the cached view so the next read hits the disk.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.cached = nil
	s.mu.Unlock()
}

// Contains reports whether the cached taxonomy holds name, case-insensitively.
func (s *Store) Contains(ctx context.Context, name string) (bool, error) {
	list, err := s.Topics(ctx)
	if err != nil {
		return false, err
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, t := range list {
		if strings.ToLower(t) == needle {
			return true, nil
		}
	}
	return false, nil
}

// Merge appends the candidate names missing from the on-disk list and
// returns those actually added. The whole read-merge-write runs in one
// critical section under the advisory lock, and the cache is refreshed from
// the merged state.
func (s *Store) Merge(ctx context.Context, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	unlock, err := s.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := readTopicsFile(s.path)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(current))
	for _, t := range current {
		seen[strings.ToLower(t)] = true
	}

	var added []string
	for _, c := range candidates {
		name := strings.TrimSpace(c)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		current = append(current, name)
		added = append(added, name)
	}

	if len(added) > 0 {
		if err := writeTopicsFile(s.path, current); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.cached = current
	s.loaded = true
	s.mu.Unlock()

	return added, nil
}

func (s *Store) acquireLock(ctx context.Context) (func(), error) {
	lock := flock.New(s.lockPath)

	lockCtx, cancel := context.WithTimeout(ctx, lockStaleAfter)
	defer cancel()

	ok, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err == nil && ok {
		return func() { _ = lock.Unlock() }, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// The holder exceeded the stale window. Reclaim the lock file and take
	// it fresh.
	_ = lock.Close()
	if err := os.Remove(s.lockPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reclaim stale topic lock: %w", err)
	}
	lock = flock.New(s.lockPath)
	retryCtx, cancelRetry := context.WithTimeout(ctx, lockStaleAfter)
	defer cancelRetry()
	ok, err = lock.TryLockContext(retryCtx, lockRetryDelay)
	if err != nil || !ok {
		return nil, fmt.Errorf("acquire topic lock: %w", err)
	}
	return func() { _ = lock.Unlock() }, nil
}

func readTopicsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read topic list: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode topic list %s: %w", path, err)
	}
	return list, nil
}

func writeTopicsFile(path string, list []string) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode topic list: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".topics-*")
	if err != nil {
		return fmt.Errorf("create temp topic list: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp topic list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp topic list: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace topic list: %w", err)
	}
	return nil
}
