package objectstore

import (
	"context"
	"io"
	"time"
)

// Metadata describes an object without reading its contents.
type Metadata struct {
	Key       string
	Size      uint64
	CreatedAt time.Time
}

// WriteCloser is a streaming sink. Close must be called to commit the
// object; an error from Close means the object was not published.
type WriteCloser interface {
	io.WriteCloser
}

// ReadCloser is a streaming source.
type ReadCloser interface {
	io.ReadCloser
}

// Store is the byte-addressable, named-object repository every backup
// artifact is written through and read back from.
type Store interface {
	// Writer opens a sink for key. overwrite=false fails with a Conflict
	// error (apierr.CodeConflict) if key already exists; the object becomes
	// observable only once the returned writer is closed successfully.
	Writer(ctx context.Context, key string, overwrite bool) (WriteCloser, error)

	// Reader opens a source for key, failing with apierr.CodeNotFound if it
	// does not exist.
	Reader(ctx context.Context, key string) (ReadCloser, error)

	// ListAll returns every key, sorted ascending lexicographically.
	ListAll(ctx context.Context) ([]string, error)

	// ListAllAfter returns every key strictly greater than prefix, sorted
	// ascending.
	ListAllAfter(ctx context.Context, prefix string) ([]string, error)

	// Find returns every key beginning with prefix, sorted ascending.
	Find(ctx context.Context, prefix string) ([]string, error)

	// Metadata returns size and creation time for key, failing with
	// apierr.CodeNotFound or apierr.CodeUnreadable.
	Metadata(ctx context.Context, key string) (Metadata, error)

	// Delete removes key. Used only for best-effort cleanup of a partially
	// published backup; callers must not treat failure as fatal.
	Delete(ctx context.Context, key string) error
}
