// Package writerchain composes the streaming sink pipeline a backup is
// written through: archive -> compress -> encrypt (optional) -> tee into a
// hasher and a signer -> the object store's writer.
//
// Each layer is a Sink: a writer that forwards transformed bytes to an
// inner writer without closing it. A Chain installs layers from the
// innermost object-store sink outward; Pipeline.Finalize closes them in
// the reverse order, so every layer's trailing bytes (tar padding, a zstd
// frame epilogue, an OpenPGP encryption footer) are written into the layer
// beneath it before that layer closes, exactly as spec'd for atomic,
// single-pass backup creation.
package writerchain
