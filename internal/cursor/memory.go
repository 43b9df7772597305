package cursor

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is a non-durable Store for tests. Same conflict semantics as
// the pebble store.
type MemoryStore struct {
	mu  sync.Mutex
	cps map[string]Checkpoint
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cps: map[string]Checkpoint{}}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, feedID string) (Checkpoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.cps[feedID]
	return cp.Clone(), ok, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, feedID string, cp Checkpoint) (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.cps[feedID]; ok && stored.Revision != cp.Revision {
		return Checkpoint{}, fmt.Errorf("%w: stored %d, saving %d", ErrConflict, stored.Revision, cp.Revision)
	}
	next := cp.Clone()
	next.Revision++
	s.cps[feedID] = next
	return next.Clone(), nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context, feedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cps, feedID)
	return nil
}
