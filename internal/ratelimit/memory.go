package ratelimit

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	ts     time.Time
	source string
}

// MemoryStore keeps rate-window entries in process memory. Entries that
// fell out of the window are pruned lazily on each count.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]entry
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string][]entry)}
}

var _ Store = (*MemoryStore)(nil)

// Admit prunes, counts and conditionally appends under one lock hold, so
// two concurrent admissions can never both slip under the ceiling.
func (s *MemoryStore) Admit(ctx context.Context, identity, sourceAddr string, since, ts time.Time, ceiling int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.pruneLocked(identity, since)
	n := len(live)
	if n >= ceiling {
		return n, false, nil
	}
	s.windows[identity] = append(live, entry{ts: ts, source: sourceAddr})
	return n, true, nil
}

func (s *MemoryStore) CountSince(ctx context.Context, identity string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pruneLocked(identity, since)), nil
}

// pruneLocked drops the identity's entries older than since and returns the
// surviving slice. Callers must hold s.mu.
func (s *MemoryStore) pruneLocked(identity string, since time.Time) []entry {
	live := s.windows[identity][:0]
	for _, e := range s.windows[identity] {
		if !e.ts.Before(since) {
			live = append(live, e)
		}
	}
	if len(live) == 0 {
		delete(s.windows, identity)
		return nil
	}
	s.windows[identity] = live
	return live
}

func (s *MemoryStore) PruneBefore(ctx context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entries := range s.windows {
		live := entries[:0]
		for _, e := range entries {
			if !e.ts.Before(before) {
				live = append(live, e)
			}
		}
		if len(live) == 0 {
			delete(s.windows, id)
			continue
		}
		s.windows[id] = live
	}
	return nil
}

// Len reports the number of live entries for an identity (for tests).
func (s *MemoryStore) Len(identity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows[identity])
}
