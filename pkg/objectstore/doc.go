// Package objectstore provides a byte-addressable object store abstraction
// over a filesystem directory or an S3-compatible bucket. Every backup
// artifact (archive, hash, signature) sentryd produces is written through
// a Store, and every restore reads one back the same way.
//
// Writers created with Create fail with a Conflict error if the object
// already exists; writers created with Overwrite never do. Reads of an
// object that does not exist fail with NotFound. Any other I/O failure is
// reported as Unreadable (reads) or CannotCreateSink (writes), matching
// the error taxonomy in pkg/apierr.
package objectstore
