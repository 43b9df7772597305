package sequencer

import (
	"context"

	"github.com/tidefeed/tidefeed/internal/cursor"
	"github.com/tidefeed/tidefeed/internal/event"
)

// Batch is one delivery unit.
type Batch struct {
	// Events in delivery order: per-shard order is sequence order,
	// shards interleave round-robin.
	Events []event.Event
	// Checkpoint is the resumption state that will be committed once
	// this batch is acknowledged. Its Token() can be handed to another
	// process as a continuation token.
	Checkpoint cursor.Checkpoint
}

// Sink receives deliveries and out-of-band conditions from a run. Methods
// are called from the sequencer's goroutine, never concurrently.
type Sink interface {
	// DeliverBatch hands the consumer a batch. Returning nil
	// acknowledges it and lets the checkpoint commit; returning an
	// error stops the run without committing.
	DeliverBatch(ctx context.Context, b Batch) error

	// CaughtUp signals the live edge: no segment has undelivered
	// complete blocks right now. The run idles and re-polls.
	CaughtUp(ctx context.Context)

	// ShardStalled reports a shard that cannot make progress (corrupt
	// block). Called once per shard per run; the feed stays pinned at
	// the stalled segment until an operator intervenes.
	ShardStalled(ctx context.Context, shardID string, err error)
}

// SinkFuncs adapts plain functions to Sink. Nil fields are no-ops (a nil
// DeliverBatch acknowledges everything).
type SinkFuncs struct {
	OnBatch    func(ctx context.Context, b Batch) error
	OnCaughtUp func(ctx context.Context)
	OnStalled  func(ctx context.Context, shardID string, err error)
}

// DeliverBatch implements Sink.
func (s SinkFuncs) DeliverBatch(ctx context.Context, b Batch) error {
	if s.OnBatch == nil {
		return nil
	}
	return s.OnBatch(ctx, b)
}

// CaughtUp implements Sink.
func (s SinkFuncs) CaughtUp(ctx context.Context) {
	if s.OnCaughtUp != nil {
		s.OnCaughtUp(ctx)
	}
}

// ShardStalled implements Sink.
func (s SinkFuncs) ShardStalled(ctx context.Context, shardID string, err error) {
	if s.OnStalled != nil {
		s.OnStalled(ctx, shardID, err)
	}
}
