// Package catalog discovers segments of the feed and tracks their
// finalization state.
//
// # Overview
//
// The upstream writer buckets shard logs into time segments. Each segment is
// described by a manifest blob at idx/segments/<yyyy>/<MM>/<dd>/<HHmm>/meta.json;
// the manifest path doubles as the segment id and sorts lexically by bucket
// time. A manifest lists the segment's shard paths and whether the segment
// is finalized.
//
// Finalized segments are immutable, so their parsed form is cached for the
// catalog's lifetime and never re-fetched; this keeps historical polls from
// hammering the metadata prefix. Pending segments are re-fetched on every
// refresh because their shard set may still grow.
package catalog
