// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Used when no RESULTS_DB is configured and in tests.
//
// Characteristics:
//   - Keeps results in insertion order plus an index keyed by MatchID.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sync"
)

// memory is an in-memory slice-based Store implementation.
type memory struct {
	mu      sync.RWMutex
	results []Result
	seen    map[string]struct{}
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{seen: make(map[string]struct{})}
}

// Save appends r unless its MatchID was already recorded.
func (m *memory) Save(ctx context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[r.MatchID]; ok {
		return ErrDuplicate
	}
	m.seen[r.MatchID] = struct{}{}
	m.results = append(m.results, r)
	return nil
}

// Recent returns the newest results first.
func (m *memory) Recent(ctx context.Context, limit int) ([]Result, error) {
	limit = normLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Result, 0, min(limit, len(m.results)))
	for i := len(m.results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.results[i])
	}
	return out, nil
}

// Tally counts wins and losses.
func (m *memory) Tally(ctx context.Context) (Tally, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var t Tally
	for _, r := range m.results {
		t.Played++
		if r.Winner == WinnerLocal {
			t.Won++
		} else {
			t.Lost++
		}
	}
	return t, nil
}
