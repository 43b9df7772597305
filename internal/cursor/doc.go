// Package cursor holds the checkpoint model and the durable store contract
// that make feed iteration resumable.
//
// # Overview
//
// A Checkpoint names the oldest in-progress segment, the per-shard read
// positions inside it, and the current shard's position as a convenience
// triple. Byte offsets always point at block boundaries already fully
// decoded; the record offset counts events already delivered from the block
// starting there, so a resume re-delivers at most the remainder of one block
// (at-least-once, bounded duplication).
//
// Stores implement a load/save contract over any durable key/value medium.
// Save is atomic per feed identity and enforces optimistic concurrency on
// the checkpoint revision: a Save carrying a stale revision fails with
// ErrConflict. A feed has single-writer discipline; the revision check is
// best-effort detection of a second writer, not coordination.
package cursor
