// Package ocf decodes the Avro object container format the feed writer
// produces for shard files.
//
// # Overview
//
// A shard begins with a container header (magic, metadata map carrying the
// writer schema and compression codec, 16-byte sync marker) followed by data
// blocks. Each block declares a record count and a byte length, carries a
// possibly-compressed run of records, and repeats the sync marker. The sync
// marker is the per-block integrity check: a mismatch is ErrCorruptBlock.
//
// The decoder is incremental and forward-only. Callers hand it a byte slice
// and a parsed Header; DecodeBlock either consumes exactly one complete block
// and reports the bytes consumed, or returns ErrNeedMoreData when the slice
// ends mid-block (the normal state of a shard that is still being appended
// to). The byte offset after each complete block is the only valid checkpoint
// granularity.
//
// API surface (internal)
//
//	hdr, err := ocf.ParseHeader(buf)          // once per shard
//	evs, n, err := ocf.DecodeBlock(hdr, buf)  // repeat; n advances the offset
package ocf
