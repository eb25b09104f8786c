package adminshell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/sentryd/pkg/apierr"
	"github.com/cuemby/sentryd/pkg/config"
	"github.com/cuemby/sentryd/pkg/log"
)

const maxCommandLength = 1024

// Ordered prefix grammar (spec.md §4.7): the first matching prefix wins.
const (
	firstLinePrefix   = "prosody> "
	exceptionPrefix   = "** "
	errorResultPrefix = "! Error: "
	errorPrefix       = "! "
	summaryPrefix     = "| OK: "
	resultPrefix      = "| Result: "
	logLinePrefix     = "| "
)

// importPreamble is run once against every freshly spawned shell, before
// any caller-issued command, giving callers short aliases for the
// handles they exercise most.
var importPreamble = []string{
	`> it = require"prosody.util.iterators"`,
	`> dump = require"prosody.util.serialization".new({ preset = "oneline" })`,
	`> mm = require"core.modulemanager"`,
	`> um = require"core.usermanager"`,
}

// Proxy is the admin shell's single writer lock (spec.md §5): every
// command requires exclusive access to the underlying child process,
// since the shell's line protocol is inherently serial.
type Proxy struct {
	cfg    config.AdminShellConfig
	logger zerolog.Logger
	audit  zerolog.Logger

	mu sync.Mutex
	h  *shellHandle
}

type shellHandle struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	lines chan string
	done  chan error
}

// New builds a Proxy. The underlying shell process is started lazily, on
// the first Exec call.
func New(cfg config.AdminShellConfig) *Proxy {
	return &Proxy{
		cfg:    cfg,
		logger: log.WithComponent("adminshell"),
		audit:  log.WithComponent("adminshell.audit"),
	}
}

// Exec runs command with the default 200ms timeout.
func (p *Proxy) Exec(ctx context.Context, command string) (*Response, error) {
	return p.ExecWithTimeout(ctx, command, time.Duration(p.cfg.DefaultTimeout))
}

// ExecLong runs command with the 10s timeout reserved for commands
// documented as O(n²).
func (p *Proxy) ExecLong(ctx context.Context, command string) (*Response, error) {
	return p.ExecWithTimeout(ctx, command, time.Duration(p.cfg.LongTimeout))
}

// ExecWithTimeout sends command to the shell and classifies its output by
// the ordered prefix grammar, respawning the child process first if the
// previous command left it in a dead or unknown state.
func (p *Proxy) ExecWithTimeout(ctx context.Context, command string, timeout time.Duration) (*Response, error) {
	if command == "" {
		return nil, apierr.New(apierr.CodeCommandEmpty, "command must not be empty")
	}
	if len(command) >= maxCommandLength {
		return nil, apierr.New(apierr.CodeCommandTooLong, fmt.Sprintf("command must be shorter than %d bytes", maxCommandLength))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	h, err := p.getOrStartLocked(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := p.execLocked(h, command, timeout)
	if err != nil {
		// Any failure reading the handle (timeout, process death, malformed
		// output) drops it; the next call respawns and re-runs the import
		// preamble rather than reusing a shell in an unknown state.
		p.closeLocked()
	}
	return resp, err
}

// Close stops the underlying shell process, if one is running.
func (p *Proxy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *Proxy) closeLocked() {
	if p.h == nil {
		return
	}
	_ = p.h.stdin.Close()
	_ = p.h.cmd.Process.Kill()
	_ = p.h.cmd.Wait()
	p.h = nil
}

func (p *Proxy) getOrStartLocked(ctx context.Context) (*shellHandle, error) {
	if p.h != nil {
		return p.h, nil
	}

	h, err := p.spawn()
	if err != nil {
		return nil, err
	}

	for _, imp := range importPreamble {
		if _, err := p.execLocked(h, imp, time.Duration(p.cfg.DefaultTimeout)); err != nil {
			_ = h.stdin.Close()
			_ = h.cmd.Process.Kill()
			_ = h.cmd.Wait()
			return nil, apierr.Wrap(apierr.CodeShellError, "running admin shell import preamble", err)
		}
	}

	p.h = h
	return h, nil
}

func (p *Proxy) spawn() (*shellHandle, error) {
	cmd := exec.Command(p.cfg.Binary, p.cfg.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInternalError, "opening admin shell stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInternalError, "opening admin shell stdout", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, apierr.Wrap(apierr.CodeInternalError, "starting admin shell process", err)
	}

	lines := make(chan string, 16)
	done := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 4096), 1<<20)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		done <- scanner.Err()
		close(lines)
	}()

	return &shellHandle{cmd: cmd, stdin: stdin, lines: lines, done: done}, nil
}

func (p *Proxy) execLocked(h *shellHandle, command string, timeout time.Duration) (*Response, error) {
	name := commandName(command)
	p.audit.Trace().Str("command", name).Msg("running admin shell command")

	if _, err := io.WriteString(h.stdin, command); err != nil {
		return nil, apierr.Wrap(apierr.CodeInternalError, "writing admin shell command", err)
	}
	if !strings.HasSuffix(command, "\n") {
		if _, err := io.WriteString(h.stdin, "\n"); err != nil {
			return nil, apierr.Wrap(apierr.CodeInternalError, "writing admin shell command", err)
		}
	}

	resp := &Response{}
	first := true
	deadline := time.After(timeout)

	for {
		select {
		case line, ok := <-h.lines:
			if !ok {
				err := <-h.done
				if err == nil {
					err = io.ErrUnexpectedEOF
				}
				return nil, apierr.Wrap(apierr.CodeShellError, "admin shell process exited", err)
			}

			if first {
				first = false
				line = strings.TrimPrefix(line, firstLinePrefix)
			}

			switch {
			case strings.HasPrefix(line, exceptionPrefix):
				return nil, apierr.New(apierr.CodeShellError, strings.TrimPrefix(line, exceptionPrefix))
			case strings.HasPrefix(line, errorResultPrefix):
				return nil, apierr.New(apierr.CodeShellError, strings.TrimPrefix(line, errorResultPrefix))
			case strings.HasPrefix(line, errorPrefix):
				return nil, apierr.New(apierr.CodeShellError, strings.TrimPrefix(line, errorPrefix))
			case strings.HasPrefix(line, summaryPrefix):
				resp.Result = strings.TrimPrefix(line, summaryPrefix)
				return resp, nil
			case strings.HasPrefix(line, resultPrefix):
				resp.Result = strings.TrimPrefix(line, resultPrefix)
				return resp, nil
			case strings.HasPrefix(line, logLinePrefix):
				resp.Lines = append(resp.Lines, strings.TrimPrefix(line, logLinePrefix))
			case strings.Contains(line, "warn\t"):
				p.logger.Warn().Str("line", line).Msg("admin shell warning")
			case strings.Contains(line, "error\t"):
				return nil, apierr.New(apierr.CodeShellError, line)
			default:
				if p.cfg.Strict {
					return nil, apierr.New(apierr.CodeShellUnexpected, line)
				}
				p.logger.Error().Str("line", line).Msg("unexpected admin shell output line")
			}

		case <-deadline:
			return nil, apierr.New(apierr.CodeCommandTimeout, fmt.Sprintf("command %q timed out after %s", name, timeout))
		}
	}
}
