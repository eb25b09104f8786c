package prosody

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/sentryd/pkg/apierr"
	"github.com/cuemby/sentryd/pkg/config"
	"github.com/cuemby/sentryd/pkg/health"
	"github.com/cuemby/sentryd/pkg/log"
)

// CrashFunc is invoked, from the process's own monitor goroutine, the
// moment the backend exits without Stop having been called. In
// cmd/sentryd it counts, logs and publishes the crash; it does not change
// the lifecycle state.
type CrashFunc func(err error)

// Supervisor owns the single backend process handle (spec.md §5's
// "backend.prosody" single writer lock): only Start/Stop/Reload/Restart may
// mutate it, serialized by mu.
type Supervisor struct {
	cfg config.ProsodyConfig

	logger  zerolog.Logger
	ready   health.Checker
	onCrash CrashFunc

	mu       sync.Mutex
	cmd      *exec.Cmd
	stopping bool
	stdout   *lineWriter
	stderr   *lineWriter
}

// NewSupervisor builds a Supervisor from cfg. onCrash may be nil.
func NewSupervisor(cfg config.ProsodyConfig, onCrash CrashFunc) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		logger:  log.WithComponent("prosody"),
		ready:   health.NewTCPChecker(cfg.ReadyAddress).WithTimeout(5 * time.Second),
		onCrash: onCrash,
	}
}

// Start launches the backend process and blocks until it is reachable on
// its admin port or cfg.ReadyTimeout elapses, then monitors it in the
// background for the remainder of its lifetime.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return apierr.New(apierr.CodePreconditionFailed, "prosody is already running")
	}

	var args []string
	if s.cfg.ConfigFile != "" {
		args = append(args, "--config", s.cfg.ConfigFile)
	}
	args = append(args, s.cfg.Args...)
	cmd := exec.Command(s.cfg.Binary, args...)

	s.stdout = newLineWriter(s.logger, "stdout", zerolog.InfoLevel)
	s.stderr = newLineWriter(s.logger, "stderr", zerolog.ErrorLevel)
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr

	s.logger.Info().Str("binary", s.cfg.Binary).Msg("starting prosody")

	if err := cmd.Start(); err != nil {
		s.closeLineWriters()
		return apierr.Wrap(apierr.CodeInternalError, "starting prosody process", err)
	}
	s.cmd = cmd
	s.stopping = false

	if err := s.waitForReady(ctx); err != nil {
		_ = s.stopLocked()
		return apierr.Wrap(apierr.CodeInternalError, "prosody did not become ready", err)
	}

	s.logger.Info().Msg("prosody is ready")
	go s.monitor(cmd)

	return nil
}

func (s *Supervisor) waitForReady(ctx context.Context) error {
	timeout := s.cfg.ReadyTimeout.Std()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		if s.ready.Check(deadline).Healthy {
			return nil
		}
		select {
		case <-deadline.Done():
			return fmt.Errorf("timed out after %s waiting for %s", timeout, s.cfg.ReadyAddress)
		case <-ticker.C:
		}
	}
}

// monitor waits for the process to exit and, unless Stop initiated the
// exit, reports the crash via onCrash.
func (s *Supervisor) monitor(cmd *exec.Cmd) {
	err := cmd.Wait()

	s.mu.Lock()
	stopping := s.stopping
	if s.cmd == cmd {
		s.cmd = nil
	}
	s.closeLineWriters()
	s.mu.Unlock()

	if stopping {
		return
	}

	if err != nil {
		s.logger.Error().Err(err).Msg("prosody exited unexpectedly")
	} else {
		s.logger.Warn().Msg("prosody exited unexpectedly with no error")
	}

	if s.onCrash != nil {
		s.onCrash(err)
	}
}

// Stop gracefully terminates the backend process: SIGTERM, then SIGKILL
// after cfg.StopTimeout if it hasn't exited.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Supervisor) stopLocked() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}

	s.stopping = true
	s.logger.Info().Msg("stopping prosody")

	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		s.logger.Error().Err(err).Msg("failed to send SIGTERM")
	}

	done := make(chan error, 1)
	cmd := s.cmd
	go func() { done <- cmd.Wait() }()

	timeout := s.cfg.StopTimeout.Std()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	select {
	case <-time.After(timeout):
		s.logger.Warn().Msg("prosody did not stop gracefully, killing")
		if err := cmd.Process.Kill(); err != nil {
			return apierr.Wrap(apierr.CodeInternalError, "killing prosody process", err)
		}
		<-done
	case <-done:
	}

	s.cmd = nil
	s.closeLineWriters()
	s.logger.Info().Msg("prosody stopped")
	return nil
}

func (s *Supervisor) closeLineWriters() {
	if s.stdout != nil {
		_ = s.stdout.Close()
		s.stdout = nil
	}
	if s.stderr != nil {
		_ = s.stderr.Close()
		s.stderr = nil
	}
}

// Reload sends the backend process its configuration-reload signal without
// restarting it.
func (s *Supervisor) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil || s.cmd.Process == nil {
		return apierr.New(apierr.CodePreconditionFailed, "prosody is not running")
	}

	s.logger.Info().Msg("reloading prosody")
	if err := s.cmd.Process.Signal(syscall.SIGHUP); err != nil {
		return apierr.Wrap(apierr.CodeInternalError, "sending SIGHUP to prosody", err)
	}
	return nil
}

// Restart stops and then starts the backend process.
func (s *Supervisor) Restart(ctx context.Context) error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Start(ctx)
}

// Running reports whether the backend process handle is currently set.
// It does not itself verify liveness; the lifecycle supervisor's own
// readiness probing is authoritative for that.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

// AdminSocket returns the configured admin-shell socket path.
func (s *Supervisor) AdminSocket() string { return s.cfg.AdminSocket }
