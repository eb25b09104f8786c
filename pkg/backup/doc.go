// Package backup implements backup naming, creation, listing, metadata
// synthesis, and restore orchestration: the component that ties the
// writer chain, the integrity set, and the crypto contexts together into
// the operations an administrator actually calls.
package backup
