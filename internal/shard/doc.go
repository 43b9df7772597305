// Package shard streams one shard log through the block decoder.
//
// # Overview
//
// A Session tracks a single shard read: it fetches byte ranges progressively
// (never whole files), hands them to the ocf decoder, and advances a
// confirmed cursor only at block boundaries. Pull returns decoded events up
// to a limit plus the new cursor and whether the shard is exhausted for now
// (more bytes may appear while the segment is unfinalized).
//
// Failure handling: fetch errors are retried with capped exponential backoff
// and then surfaced wrapped in ErrTransientFetch; the caller may Pull again
// on a later tick from the same confirmed cursor. Decoder corruption
// (ocf.ErrCorruptBlock) is surfaced as-is and is fatal for the session; the
// cursor stays at the last good block boundary.
package shard
