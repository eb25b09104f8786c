package adminshell

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sentryd/pkg/apierr"
	"github.com/cuemby/sentryd/pkg/config"
)

func requireShell(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return path
}

// fakeShellScript is a minimal stand-in for `prosodyctl shell --quiet`: it
// answers the import preamble and a handful of canned commands using the
// same ordered-prefix grammar the proxy parses.
const fakeShellScript = `
while IFS= read -r line; do
  case "$line" in
    '> it = require'*) echo '| Result: nil' ;;
    '> dump = require'*) echo '| Result: nil' ;;
    '> mm = require'*) echo '| Result: nil' ;;
    '> um = require'*) echo '| Result: nil' ;;
    '> not not prosody.hosts["ok.example"]') echo '| Result: true' ;;
    '> not not prosody.hosts["missing.example"]') echo '| Result: false' ;;
    'user:create("new@ok.example", "secret")') echo '| OK: User created' ;;
    'user:create("dupe@ok.example", "secret")') echo '! Error: User exists' ;;
    'boom') echo '! Error: boom failed' ;;
    'explode') echo '** fatal console error' ;;
    'slow') sleep 2; echo '| Result: nil' ;;
    crash) exit 7 ;;
    *) echo '| Result: nil' ;;
  esac
done
`

func newTestProxy(t *testing.T) *Proxy {
	t.Helper()
	sh := requireShell(t)
	cfg := config.AdminShellConfig{
		Binary:         sh,
		Args:           []string{"-c", fakeShellScript},
		DefaultTimeout: config.Duration(500 * time.Millisecond),
		LongTimeout:    config.Duration(3 * time.Second),
	}
	p := New(cfg)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestExecRunsImportPreambleOnFirstCommand(t *testing.T) {
	p := newTestProxy(t)
	exists, err := p.HostExists(context.Background(), "ok.example")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestExecRejectsEmptyAndOversizedCommands(t *testing.T) {
	p := newTestProxy(t)

	_, err := p.Exec(context.Background(), "")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodeCommandEmpty))

	oversized := make([]byte, maxCommandLength)
	for i := range oversized {
		oversized[i] = 'a'
	}
	_, err = p.Exec(context.Background(), string(oversized))
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodeCommandTooLong))
}

func TestUserCreateReportsConflictOnExistingUser(t *testing.T) {
	p := newTestProxy(t)
	err := p.UserCreate(context.Background(), "dupe@ok.example", "secret", "")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodeConflict))
}

func TestUserCreateSucceeds(t *testing.T) {
	p := newTestProxy(t)
	err := p.UserCreate(context.Background(), "new@ok.example", "secret", "")
	assert.NoError(t, err)
}

func TestExecSurfacesShellErrorLine(t *testing.T) {
	p := newTestProxy(t)
	_, err := p.Exec(context.Background(), "boom")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodeShellError))
}

func TestExecSurfacesExceptionLine(t *testing.T) {
	p := newTestProxy(t)
	_, err := p.Exec(context.Background(), "explode")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodeShellError))
}

func TestExecTimesOutAndRespawnsOnNextCall(t *testing.T) {
	p := newTestProxy(t)

	_, err := p.Exec(context.Background(), "slow")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.CodeCommandTimeout))

	// The timed-out command left the handle in an unknown state; the next
	// call must respawn (and re-run the import preamble) rather than reuse
	// a shell that may still answer the stale command late.
	exists, err := p.HostExists(context.Background(), "ok.example")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCrashIsRecoveredOnNextCommand(t *testing.T) {
	p := newTestProxy(t)

	_, err := p.Exec(context.Background(), "crash")
	require.Error(t, err)

	exists, err := p.HostExists(context.Background(), "ok.example")
	require.NoError(t, err)
	assert.True(t, exists)
}
