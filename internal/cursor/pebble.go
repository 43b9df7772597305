package cursor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	pebblestore "github.com/tidefeed/tidefeed/internal/storage/pebble"
)

// PebbleStore persists checkpoints in a local Pebble database with synced
// writes. Conflict handling: optimistic concurrency on Checkpoint.Revision.
type PebbleStore struct {
	db *pebblestore.DB
	mu sync.Mutex
}

// NewPebbleStore wraps an open database.
func NewPebbleStore(db *pebblestore.DB) *PebbleStore {
	return &PebbleStore{db: db}
}

// keyCheckpoint builds the checkpoint key: feed/{id}/cursor.
func keyCheckpoint(feedID string) []byte {
	k := make([]byte, 0, len(feedID)+12)
	k = append(k, "feed/"...)
	k = append(k, feedID...)
	k = append(k, "/cursor"...)
	return k
}

// Load implements Store.
func (s *PebbleStore) Load(_ context.Context, feedID string) (Checkpoint, bool, error) {
	b, err := s.db.Get(keyCheckpoint(feedID))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("cursor: load %s: %w", feedID, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(b, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("cursor: load %s: %w", feedID, err)
	}
	return cp, true, nil
}

// Save implements Store. The read-check-write runs under a mutex; the write
// itself is a single synced key set, so a crash leaves either the old or the
// new checkpoint, never a torn one.
func (s *PebbleStore) Save(ctx context.Context, feedID string, cp Checkpoint) (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok, err := s.Load(ctx, feedID)
	if err != nil {
		return Checkpoint{}, err
	}
	if ok && stored.Revision != cp.Revision {
		return Checkpoint{}, fmt.Errorf("%w: stored %d, saving %d", ErrConflict, stored.Revision, cp.Revision)
	}
	next := cp.Clone()
	next.Revision++
	b, err := json.Marshal(next)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("cursor: save %s: %w", feedID, err)
	}
	if err := s.db.Set(keyCheckpoint(feedID), b); err != nil {
		return Checkpoint{}, fmt.Errorf("cursor: save %s: %w", feedID, err)
	}
	return next, nil
}

// Reset implements Store.
func (s *PebbleStore) Reset(_ context.Context, feedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Delete(keyCheckpoint(feedID))
}
