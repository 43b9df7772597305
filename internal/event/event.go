package event

import (
	"strings"
	"time"
)

// Type is the closed set of change kinds the feed publishes.
type Type int

// Change types
const (
	TypeUnknown Type = iota
	TypeCreated
	TypeDeleted
	TypeMetadataUpdated
	TypePropertiesUpdated
	TypeRenamed
)

// String returns the canonical wire tag for known types, "Unknown" otherwise.
func (t Type) String() string {
	switch t {
	case TypeCreated:
		return "BlobCreated"
	case TypeDeleted:
		return "BlobDeleted"
	case TypeMetadataUpdated:
		return "BlobMetadataUpdated"
	case TypePropertiesUpdated:
		return "BlobPropertiesUpdated"
	case TypeRenamed:
		return "BlobRenamed"
	default:
		return "Unknown"
	}
}

// ParseType maps a wire tag to a Type. Unrecognized tags map to TypeUnknown;
// callers keep the raw tag alongside so nothing is lost.
func ParseType(raw string) Type {
	switch raw {
	case "BlobCreated":
		return TypeCreated
	case "BlobDeleted":
		return TypeDeleted
	case "BlobMetadataUpdated":
		return TypeMetadataUpdated
	case "BlobPropertiesUpdated":
		return TypePropertiesUpdated
	case "BlobRenamed":
		return TypeRenamed
	default:
		return TypeUnknown
	}
}

// Event is one change record decoded from a shard.
type Event struct {
	// ID is globally unique within the feed, assigned upstream.
	ID string
	// Sequence is strictly increasing within the event's shard.
	Sequence int64
	// Type is the decoded change kind; TypeUnknown for tags this build
	// does not recognize.
	Type Type
	// RawType preserves the wire tag exactly as written, including tags
	// that decoded to TypeUnknown. Re-encoding uses RawType so unknown
	// kinds round-trip.
	RawType string
	// Subject identifies the affected object (container + path).
	Subject string
	// Time is the upstream-assigned event time. Monotonic within a shard,
	// not across shards.
	Time time.Time
	// Payload holds the type-specific fields, opaque beyond the common
	// ones. Unknown keys are preserved.
	Payload map[string]string
}

// Container extracts the container name from the subject, or "" when the
// subject does not follow the /containers/<name>/blobs/<path> form.
func (e Event) Container() string {
	c, _ := splitSubject(e.Subject)
	return c
}

// Path extracts the object path within its container, or "" when absent.
func (e Event) Path() string {
	_, p := splitSubject(e.Subject)
	return p
}

func splitSubject(subject string) (container, path string) {
	const marker = "/containers/"
	i := strings.Index(subject, marker)
	if i < 0 {
		return "", ""
	}
	rest := subject[i+len(marker):]
	j := strings.Index(rest, "/blobs/")
	if j < 0 {
		return rest, ""
	}
	return rest[:j], rest[j+len("/blobs/"):]
}
