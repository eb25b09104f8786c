// Package lifecycle implements the process-lifecycle state machine that
// gates when backup/restore operations, backend process control, and
// factory reset are admissible. State is a product type (Frontend,
// Backend); every event is a total function from the current state to a
// next state, published through a single-voter raft group so reads are
// lock-free atomic snapshots and writes are linearizable.
package lifecycle
