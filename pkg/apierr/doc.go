// Package apierr defines the stable error taxonomy shared by every layer of
// sentryd: object storage, the writer chain, integrity checking, the backup
// service, and the lifecycle supervisor all return *Error values so the
// admin HTTP API can map them to a status code without re-classifying raw
// errors at the boundary.
package apierr
