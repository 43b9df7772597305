// Package event defines the change-event model produced by the feed.
//
// Events are pure data. Each one carries the upstream-assigned id, the
// per-shard sequence number, a closed set of change types with an Unknown
// arm for forward compatibility, the subject of the change, the upstream
// event time, and an opaque payload map of type-specific fields.
//
// Ordering: sequence numbers are strictly increasing within a shard only.
// Nothing in this package (or its consumers) may assume cross-shard order.
package event
