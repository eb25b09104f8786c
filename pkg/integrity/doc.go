// Package integrity implements the per-backup Integrity Set: discovery of
// digest and detached-signature auxiliary objects alongside a primary
// backup artifact, pre-validation of their shape, streaming verification
// against the restored byte stream, and the mandatory-policy decision rule
// that decides whether a restore is trusted.
package integrity
