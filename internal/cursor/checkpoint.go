package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ShardCursor is the read position within one shard.
type ShardCursor struct {
	// ByteOffset is the start of the next unread block. It is only ever
	// a block boundary (or the container header end for a fresh shard).
	ByteOffset int64 `json:"byteOffset"`
	// RecordOffset counts records already delivered from the block that
	// starts at ByteOffset. Zero means the whole block is undelivered.
	RecordOffset int `json:"recordOffset"`
}

// Checkpoint is the resumption state for one feed identity.
type Checkpoint struct {
	// Revision implements optimistic concurrency in the store. Zero on a
	// never-saved checkpoint; the store bumps it on every Save.
	Revision int64 `json:"revision"`
	// SegmentID is the oldest segment with undelivered data.
	SegmentID string `json:"segmentId"`
	// ShardID and the two offsets mirror the entry in Shards for the
	// shard the sequencer last advanced.
	ShardID      string `json:"shardId"`
	ByteOffset   int64  `json:"byteOffset"`
	RecordOffset int    `json:"recordOffset"`
	// Shards carries one cursor per shard of SegmentID, so a resume
	// never re-reads a sibling shard from zero.
	Shards map[string]ShardCursor `json:"shards,omitempty"`
	// SegmentComplete marks SegmentID fully drained and finalized. The
	// next run starts at the segment after it, never re-reading it.
	SegmentComplete bool `json:"segmentComplete,omitempty"`
}

// IsZero reports whether the checkpoint is the start-of-feed state.
func (c Checkpoint) IsZero() bool {
	return c.SegmentID == "" && len(c.Shards) == 0
}

// Clone deep-copies the checkpoint.
func (c Checkpoint) Clone() Checkpoint {
	out := c
	if c.Shards != nil {
		out.Shards = make(map[string]ShardCursor, len(c.Shards))
		for k, v := range c.Shards {
			out.Shards[k] = v
		}
	}
	return out
}

// Token serializes the checkpoint to an opaque continuation token callers
// can carry across processes without access to the store.
func (c Checkpoint) Token() string {
	b, _ := json.Marshal(c)
	return base64.URLEncoding.EncodeToString(b)
}

// ParseToken decodes a continuation token produced by Token.
func ParseToken(token string) (Checkpoint, error) {
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("cursor: bad token: %w", err)
	}
	var c Checkpoint
	if err := json.Unmarshal(b, &c); err != nil {
		return Checkpoint{}, fmt.Errorf("cursor: bad token: %w", err)
	}
	return c, nil
}
