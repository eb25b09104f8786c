package lifecycle

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sentryd/pkg/apierr"
	"github.com/cuemby/sentryd/pkg/config"
)

type fakeBackend struct {
	mu        sync.Mutex
	running   bool
	startErr  error
	reloadErr error
}

func (f *fakeBackend) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeBackend) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	return nil
}

func (f *fakeBackend) Reload() error {
	return f.reloadErr
}

func (f *fakeBackend) Restart(ctx context.Context) error {
	if err := f.Stop(); err != nil {
		return err
	}
	return f.Start(ctx)
}

func freeLoopbackAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func newTestSupervisor(t *testing.T, backend BackendProcess, hooks Hooks) *Supervisor {
	t.Helper()
	cfg := config.LifecycleConfig{
		NodeID:   "test-node",
		BindAddr: freeLoopbackAddr(t),
		DataDir:  filepath.Join(t.TempDir(), "raft"),
	}
	sup, err := New(cfg, backend, hooks)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sup.Shutdown() })

	require.Eventually(t, func() bool {
		return sup.raft.State() == raft.Leader
	}, 5*time.Second, 10*time.Millisecond, "single-voter raft group never elected itself leader")

	return sup
}

func TestBootstrapReachesOperationalState(t *testing.T) {
	backend := &fakeBackend{}
	bootstrapped := false
	sup := newTestSupervisor(t, backend, Hooks{
		Bootstrap: func(ctx context.Context) error { bootstrapped = true; return nil },
	})

	require.NoError(t, sup.Bootstrap(context.Background()))
	assert.True(t, bootstrapped)
	assert.True(t, sup.Snapshot().Operational())
	assert.NoError(t, sup.RequireOperational())
}

func TestBootstrapConfigInvalidLandsOnMisconfigured(t *testing.T) {
	backend := &fakeBackend{}
	sup := newTestSupervisor(t, backend, Hooks{
		Bootstrap: func(ctx context.Context) error {
			return apierr.New(apierr.CodeConfigError, "bad domain")
		},
	})

	require.NoError(t, sup.Bootstrap(context.Background()))
	state := sup.Snapshot()
	assert.Equal(t, FrontendMisconfigured, state.Frontend)
	assert.Equal(t, BackendStopped, state.Backend)
	assert.Error(t, sup.RequireOperational())
}

func TestSecondBootstrapIsRejected(t *testing.T) {
	backend := &fakeBackend{}
	sup := newTestSupervisor(t, backend, Hooks{
		Bootstrap: func(ctx context.Context) error { return nil },
	})

	require.NoError(t, sup.Bootstrap(context.Background()))
	err := sup.Bootstrap(context.Background())
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodePreconditionFailed))
}

func TestRestartBackendFailureSetsStartFailed(t *testing.T) {
	backend := &fakeBackend{}
	sup := newTestSupervisor(t, backend, Hooks{
		Bootstrap: func(ctx context.Context) error { return nil },
	})
	require.NoError(t, sup.Bootstrap(context.Background()))

	backend.startErr = apierr.New(apierr.CodeInternalError, "boom")
	err := sup.RestartBackend(context.Background())
	require.Error(t, err)

	state := sup.Snapshot()
	assert.Equal(t, BackendStartFailed, state.Backend)
	assert.Error(t, sup.RequireOperational())
}

func TestRetryStartRecoversFromStartFailed(t *testing.T) {
	backend := &fakeBackend{}
	sup := newTestSupervisor(t, backend, Hooks{
		Bootstrap: func(ctx context.Context) error { return nil },
	})
	require.NoError(t, sup.Bootstrap(context.Background()))

	backend.startErr = apierr.New(apierr.CodeInternalError, "boom")
	require.Error(t, sup.RestartBackend(context.Background()))
	require.Equal(t, BackendStartFailed, sup.Snapshot().Backend)

	backend.startErr = nil
	require.NoError(t, sup.RetryStart(context.Background()))
	assert.True(t, sup.Snapshot().Operational())
}

func TestFactoryResetIsTerminalAndRequiresNewBootstrap(t *testing.T) {
	backend := &fakeBackend{}
	sup := newTestSupervisor(t, backend, Hooks{
		Bootstrap: func(ctx context.Context) error { return nil },
	})
	require.NoError(t, sup.Bootstrap(context.Background()))

	require.NoError(t, sup.FactoryReset(context.Background()))
	state := sup.Snapshot()
	assert.Equal(t, FrontendMisconfigured, state.Frontend)
	assert.Equal(t, BackendStopped, state.Backend)
	assert.Error(t, sup.RequireOperational())

	// Bootstrap is not admissible after a factory reset: it leaves Backend
	// Stopped (sub-state NotInitialized), while Bootstrap requires Backend
	// NotInitialized. A frontend reload is required first, matching
	// spec.md §4.6's "any" row.
	err := sup.Bootstrap(context.Background())
	assert.Error(t, err)
}

func TestReloadFrontendRebootstrapsAfterFactoryReset(t *testing.T) {
	backend := &fakeBackend{}
	bootstraps := 0
	sup := newTestSupervisor(t, backend, Hooks{
		Bootstrap:            func(ctx context.Context) error { bootstraps++; return nil },
		ReloadFrontendConfig: func(ctx context.Context) error { return nil },
	})
	require.NoError(t, sup.Bootstrap(context.Background()))
	require.NoError(t, sup.FactoryReset(context.Background()))
	require.Equal(t, 1, bootstraps)

	require.NoError(t, sup.ReloadFrontend(context.Background()))
	assert.Equal(t, 2, bootstraps)
	assert.True(t, sup.Snapshot().Operational())
}

func TestReloadBackendRejectedWhenNotRunning(t *testing.T) {
	backend := &fakeBackend{}
	sup := newTestSupervisor(t, backend, Hooks{})

	err := sup.ReloadBackend()
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodePreconditionFailed))
}
