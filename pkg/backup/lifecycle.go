package backup

// StateChecker is the slice of the lifecycle supervisor the backup
// service depends on: Invariant S1 requires both the frontend and the
// backend to be Running/Operational before a create or restore is
// admissible.
type StateChecker interface {
	RequireOperational() error
}
