// Package pebblestore wraps a Pebble database behind the small surface the
// cursor store needs: durable single-key writes, reads, deletes and ordered
// iteration. The wrapper owns the fsync policy so callers never decide
// durability per write; checkpoints default to synced commits.
package pebblestore
