package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the named blob does not exist.
var ErrNotFound = errors.New("blob: not found")

// Info describes one listed blob.
type Info struct {
	// Key is the blob's path within the container.
	Key string
	// Length is the committed byte length at listing time. The blob may
	// have grown since.
	Length int64
}

// Client is the storage boundary the engine reads through.
type Client interface {
	// List returns the blobs under prefix in ascending key order, with
	// their committed lengths.
	List(ctx context.Context, prefix string) ([]Info, error)

	// ReadRange returns up to length bytes of the blob starting at
	// offset. Short reads at the committed end are normal, not errors;
	// an empty result means nothing is committed at or past offset.
	ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error)
}
