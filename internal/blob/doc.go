// Package blob defines the range-read client contract the engine consumes,
// plus an in-memory implementation used by tests.
//
// The engine never loads whole blobs: shard files can be arbitrarily large
// and may still be growing. Implementations must support partial reads of
// growing blobs; reading exactly the bytes known committed at call time
// implies nothing about the blob being complete.
//
// Concrete backends live in subpackages (azureblob, fsblob) and are injected
// at construction; there are no process-wide client singletons.
package blob
