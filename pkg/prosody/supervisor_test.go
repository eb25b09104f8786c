package prosody

import (
	"context"
	"net"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sentryd/pkg/config"
)

// listeningAddr opens and immediately returns a TCP address that is
// reachable for the lifetime of the test, standing in for the backend's
// own admin port without needing the fake child process to open one.
func listeningAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return ln.Addr().String()
}

func requireShell(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return path
}

func TestStartWaitsForReadyThenMonitors(t *testing.T) {
	sh := requireShell(t)

	cfg := config.ProsodyConfig{
		Binary:       sh,
		Args:         []string{"-c", "echo hello; trap 'exit 0' TERM; sleep 30 & wait"},
		ReadyAddress: listeningAddr(t),
		ReadyTimeout: config.Duration(2 * time.Second),
		StopTimeout:  config.Duration(2 * time.Second),
	}

	sup := NewSupervisor(cfg, nil)
	require.NoError(t, sup.Start(context.Background()))
	assert.True(t, sup.Running())

	require.NoError(t, sup.Stop())
	assert.False(t, sup.Running())
}

func TestStartFailsWhenNeverReady(t *testing.T) {
	sh := requireShell(t)

	unreachable := "127.0.0.1:1" // low port, nothing listens there

	cfg := config.ProsodyConfig{
		Binary:       sh,
		Args:         []string{"-c", "sleep 30"},
		ReadyAddress: unreachable,
		ReadyTimeout: config.Duration(300 * time.Millisecond),
		StopTimeout:  config.Duration(time.Second),
	}

	sup := NewSupervisor(cfg, nil)
	err := sup.Start(context.Background())
	require.Error(t, err)
	assert.False(t, sup.Running())
}

func TestCrashIsReportedWhenNotStopping(t *testing.T) {
	sh := requireShell(t)

	cfg := config.ProsodyConfig{
		Binary:       sh,
		Args:         []string{"-c", "exit 1"},
		ReadyAddress: listeningAddr(t),
		ReadyTimeout: config.Duration(2 * time.Second),
		StopTimeout:  config.Duration(time.Second),
	}

	crashed := make(chan error, 1)
	sup := NewSupervisor(cfg, func(err error) { crashed <- err })
	require.NoError(t, sup.Start(context.Background()))

	select {
	case err := <-crashed:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected crash callback")
	}
}

func TestReloadRequiresRunningProcess(t *testing.T) {
	sup := NewSupervisor(config.ProsodyConfig{}, nil)
	err := sup.Reload()
	require.Error(t, err)
}
