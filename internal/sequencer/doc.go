// Package sequencer orchestrates catalog, shard sessions and the cursor
// store into a single resumable event stream.
//
// # Overview
//
// One Sequencer instance owns one feed identity (single-writer discipline:
// two instances advancing the same checkpoint is a caller error, detected
// best-effort by the store's revision check). A run moves through
//
//	Idle → Resuming → Polling → Draining → Committing → Polling → ...
//
// with a terminal Stopped on cancellation. Shards of the active segment are
// pulled concurrently under a bounded limit and interleaved strict
// round-robin (deterministic, documented non-guarantee: consumers get order
// only within a shard, plus segment-level coarse temporal order).
//
// Delivery is batched; the consumer's ack (the sink callback returning nil)
// gates the checkpoint commit, which always lands on block boundaries. A
// shard that hits a corrupt block is marked stalled and reported; its
// siblings keep draining, but the feed does not advance past the stalled
// segment, so nothing is silently lost.
package sequencer
