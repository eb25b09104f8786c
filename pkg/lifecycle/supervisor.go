package lifecycle

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"

	"github.com/cuemby/sentryd/pkg/apierr"
	"github.com/cuemby/sentryd/pkg/config"
	"github.com/cuemby/sentryd/pkg/log"
)

// BackendProcess is the slice of *prosody.Supervisor the lifecycle
// supervisor depends on: it does not need the concrete type, only the
// ability to start/stop/reload/restart the backend process.
type BackendProcess interface {
	Start(ctx context.Context) error
	Stop() error
	Reload() error
	Restart(ctx context.Context) error
}

// Hooks are the external collaborators a lifecycle transition invokes but
// does not itself implement (bootstrap of service accounts/access groups,
// frontend configuration reload, and directory emptying on factory reset
// are all out of scope per spec.md §1 beyond the contract this package
// depends on).
type Hooks struct {
	Bootstrap            func(ctx context.Context) error
	ReloadFrontendConfig func(ctx context.Context) error
	EmptyDataDirectories func(ctx context.Context) error
}

// Supervisor is the lifecycle state machine (C6): it owns the backend
// process handle's single writer lock and publishes every transition
// through a single-voter raft group so state reads are lock-free atomic
// snapshots and writes are linearizable (spec.md §5).
type Supervisor struct {
	logger  zerolog.Logger
	prosody BackendProcess
	hooks   Hooks

	raft *raft.Raft
	fsm  *stateFSM

	// writeMu is spec.md §5's "backend.prosody" single writer lock: only
	// lifecycle transitions may mutate the backend process handle.
	writeMu sync.Mutex
}

// New builds a Supervisor with its own durable raft log under
// cfg.DataDir, bootstraps a single-voter cluster, and publishes Initial()
// as the first state.
func New(cfg config.LifecycleConfig, backend BackendProcess, hooks Hooks) (*Supervisor, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, apierr.Wrap(apierr.CodeInternalError, "creating lifecycle data directory", err)
	}

	fsm := newStateFSM(Initial())

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeConfigError, "resolving lifecycle bind address", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInternalError, "creating lifecycle raft transport", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInternalError, "creating lifecycle snapshot store", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInternalError, "creating lifecycle log store", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInternalError, "creating lifecycle stable store", err)
	}

	r, err := raft.NewRaft(raftConfig, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInternalError, "creating lifecycle raft group", err)
	}

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: raftConfig.LocalID, Address: transport.LocalAddr()}},
	})
	// Re-bootstrapping an existing log returns raft.ErrCantBootstrap; that
	// is expected on every restart after the first and is not an error.
	if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
		return nil, apierr.Wrap(apierr.CodeInternalError, "bootstrapping lifecycle raft group", err)
	}

	// Apply only succeeds on the leader; wait for the single voter to elect
	// itself so callers can publish transitions as soon as New returns.
	deadline := time.Now().Add(10 * time.Second)
	for r.State() != raft.Leader {
		if time.Now().After(deadline) {
			_ = r.Shutdown().Error()
			return nil, apierr.New(apierr.CodeInternalError, "lifecycle raft group did not elect itself leader")
		}
		time.Sleep(10 * time.Millisecond)
	}

	return &Supervisor{
		logger:  log.WithComponent("lifecycle"),
		prosody: backend,
		hooks:   hooks,
		raft:    r,
		fsm:     fsm,
	}, nil
}

// Snapshot returns the current state: a lock-free read of the atomically
// swapped pointer, never blocking a concurrent writer.
func (s *Supervisor) Snapshot() AppState {
	return *s.fsm.current.Load()
}

// RequireOperational implements backup.StateChecker: create/restore
// require Invariant S1, (Running(Operational), Running(Operational)).
func (s *Supervisor) RequireOperational() error {
	if s.Snapshot().Operational() {
		return nil
	}
	return apierr.New(apierr.CodePreconditionFailed, "backend is not in a running, operational state")
}

// publish applies next as a committed raft log entry, serializing it
// through the raft group's own internal lock, so every reader sees
// transitions in the order they were applied (linearizable per spec.md §5).
func (s *Supervisor) publish(next AppState) error {
	data, err := marshalTransition(next)
	if err != nil {
		return apierr.Wrap(apierr.CodeInternalError, "encoding lifecycle transition", err)
	}
	future := s.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return apierr.Wrap(apierr.CodeInternalError, "publishing lifecycle transition", err)
	}
	return nil
}

func rejected(event Event) error {
	return apierr.New(apierr.CodePreconditionFailed, fmt.Sprintf("%s is not admissible in the current state", event))
}

// Bootstrap runs hooks.Bootstrap and starts the backend process, publishing
// the resulting state per spec.md §4.6's bootstrap row.
func (s *Supervisor) Bootstrap(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !Admissible(s.Snapshot(), EventBootstrap) {
		return rejected(EventBootstrap)
	}
	return s.doBootstrap(ctx)
}

// doBootstrap runs the actual start-then-bootstrap attempt and publishes
// its outcome; callers are responsible for admissibility and the write
// lock. It is shared by the public Bootstrap event and by ReloadFrontend's
// "any" row, which admits a bootstrap attempt from Stopped(NotInitialized)
// without going through Bootstrap's own, narrower admissibility check.
func (s *Supervisor) doBootstrap(ctx context.Context) error {
	startErr := s.prosody.Start(ctx)
	var bootstrapErr error
	if startErr == nil && s.hooks.Bootstrap != nil {
		bootstrapErr = s.hooks.Bootstrap(ctx)
	}

	switch {
	case startErr == nil && bootstrapErr == nil:
		return s.publish(BootstrapOutcome(true, false, nil))
	case apierr.Is(bootstrapErr, apierr.CodeConfigError):
		_ = s.prosody.Stop()
		return s.publish(BootstrapOutcome(false, true, bootstrapErr))
	default:
		cause := startErr
		if cause == nil {
			cause = bootstrapErr
		}
		return s.publish(BootstrapOutcome(false, false, cause))
	}
}

// ReloadFrontend re-reads the frontend's own configuration via
// hooks.ReloadFrontendConfig. Admissible in any state; if the backend is
// currently Stopped(NotInitialized) and the frontend becomes Running, it
// also attempts bootstrap (spec.md §4.6's "any" row).
func (s *Supervisor) ReloadFrontend(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.Snapshot()

	var reloadErr error
	if s.hooks.ReloadFrontendConfig != nil {
		reloadErr = s.hooks.ReloadFrontendConfig(ctx)
	}

	next := ReloadFrontendOutcome(current, reloadErr == nil, reloadErr)
	if err := s.publish(next); err != nil {
		return err
	}

	if reloadErr == nil && current.Backend == BackendStopped && current.BackendSub == BackendSubNotInitialized {
		return s.doBootstrap(ctx)
	}
	return nil
}

// ReloadBackend sends the backend its reload signal. The state is
// unchanged on both success and failure; the error is surfaced to the
// caller, not recorded in AppState.
func (s *Supervisor) ReloadBackend() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !Admissible(s.Snapshot(), EventReloadBackend) {
		return rejected(EventReloadBackend)
	}
	return s.prosody.Reload()
}

// RestartBackend stops and restarts the backend process.
func (s *Supervisor) RestartBackend(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.Snapshot()
	if !Admissible(current, EventRestartBackend) {
		return rejected(EventRestartBackend)
	}

	err := s.prosody.Restart(ctx)
	return s.publish(RestartBackendOutcome(current, err == nil, err))
}

// StartBackend starts the backend process from (Running, Starting).
func (s *Supervisor) StartBackend(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !Admissible(s.Snapshot(), EventStartBackend) {
		return rejected(EventStartBackend)
	}

	err := s.prosody.Start(ctx)
	return s.publish(StartBackendOutcome(err == nil, err))
}

// RetryStart retries starting the backend process from a prior
// StartFailed state.
func (s *Supervisor) RetryStart(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.Snapshot()
	if !Admissible(current, EventRetryStart) {
		return rejected(EventRetryStart)
	}

	err := s.prosody.Start(ctx)
	return s.publish(RetryStartOutcome(current, err == nil, err))
}

// FactoryReset stops the backend, empties its data directories, and
// publishes the terminal (Misconfigured, Stopped(NotInitialized)) state
// per Invariant S2; it may never transition back to Running without a
// subsequent, separately admitted Bootstrap call.
func (s *Supervisor) FactoryReset(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.Snapshot()
	if !Admissible(current, EventFactoryReset) {
		return rejected(EventFactoryReset)
	}

	stopErr := s.prosody.Stop()
	var emptyErr error
	if stopErr == nil && s.hooks.EmptyDataDirectories != nil {
		emptyErr = s.hooks.EmptyDataDirectories(ctx)
	}

	cause := stopErr
	if cause == nil {
		cause = emptyErr
	}
	return s.publish(FactoryResetOutcome(cause))
}

// Shutdown releases the raft group. It does not stop the backend process;
// callers that also own a *prosody.Supervisor should stop it separately.
func (s *Supervisor) Shutdown() error {
	future := s.raft.Shutdown()
	return future.Error()
}
