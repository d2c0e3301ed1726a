package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the process-local fixed-window store. Entries are created
// lazily on first attempt per key, replaced wholesale once their window has
// passed, and garbage-collected by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry

	// now is swapped out by tests to drive window expiry.
	now func() time.Time
}

type entry struct {
	count   int
	resetAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Incr counts one attempt against key. A missing or expired entry is replaced
// with a fresh window; there is no partial credit carried across windows.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.resetAt.After(now) {
		e = &entry{resetAt: now.Add(window)}
		s.entries[key] = e
	}
	e.count++

	return e.count, e.resetAt, nil
}

// Sweep deletes every entry whose window has already expired, regardless of
// whether it has been queried since expiring.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if !e.resetAt.After(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of live entries. Used by tests and the health
// endpoint.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
