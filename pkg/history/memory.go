package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage backend for tests and ephemeral
// runs.
type MemoryStorage struct {
	mu         sync.RWMutex
	runs       map[string]*Run
	violations map[string][]*StoredViolation
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		runs:       make(map[string]*Run),
		violations: make(map[string][]*StoredViolation),
	}
}

// SaveRun implements Storage.
func (m *MemoryStorage) SaveRun(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *run
	m.runs[run.ID] = &stored
	return nil
}

// SaveViolations implements Storage.
func (m *MemoryStorage) SaveViolations(ctx context.Context, violations []*StoredViolation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range violations {
		stored := *v
		m.violations[v.RunID] = append(m.violations[v.RunID], &stored)
	}
	return nil
}

// GetRun implements Storage.
func (m *MemoryStorage) GetRun(ctx context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	out := *run
	return &out, nil
}

// ListRuns implements Storage.
func (m *MemoryStorage) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		out := *run
		runs = append(runs, &out)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// ListViolations implements Storage.
func (m *MemoryStorage) ListViolations(ctx context.Context, runID string) ([]*StoredViolation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src := m.violations[runID]
	out := make([]*StoredViolation, len(src))
	for i, v := range src {
		stored := *v
		out[i] = &stored
	}
	return out, nil
}

// DeleteRunsBefore implements Storage.
func (m *MemoryStorage) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, run := range m.runs {
		if run.StartedAt.Before(cutoff) {
			delete(m.runs, id)
			delete(m.violations, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close implements Storage.
func (m *MemoryStorage) Close() error {
	return nil
}
