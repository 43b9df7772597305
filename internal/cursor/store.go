package cursor

import (
	"context"
	"errors"
)

// ErrConflict reports a Save carrying a revision older than the stored one.
// This means a second writer advanced the same feed identity, a caller
// error under single-writer discipline. There is no automatic resolution.
var ErrConflict = errors.New("cursor: checkpoint revision conflict")

// Store persists checkpoints per feed identity. Implementations must make
// Save atomic for a single identity (no torn writes).
type Store interface {
	// Load returns the last saved checkpoint, or ok=false when the feed
	// has never committed.
	Load(ctx context.Context, feedID string) (cp Checkpoint, ok bool, err error)

	// Save persists cp if cp.Revision matches the stored revision (or
	// nothing is stored and cp.Revision is zero), then returns the
	// checkpoint with its revision bumped. A stale revision fails with
	// ErrConflict.
	Save(ctx context.Context, feedID string, cp Checkpoint) (Checkpoint, error)

	// Reset removes the checkpoint so the next run starts from the
	// beginning (or a caller-supplied start time).
	Reset(ctx context.Context, feedID string) error
}
