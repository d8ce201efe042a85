// Package blobstore abstracts where snapshot archives live: local disk for
// single-node deployments, MinIO or S3 for shared object storage, memory for
// tests.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore stores immutable named blobs (snapshot archives).
type BlobStore interface {
	// Put writes a blob atomically. size may be -1 when unknown.
	Put(ctx context.Context, name string, r io.Reader, size int64) error

	// Open opens a blob for reading and returns its size.
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
