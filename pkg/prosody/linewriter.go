package prosody

import (
	"bufio"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// lineWriter adapts a child process's raw output stream into one structured
// log event per line, classifying each line's level from a leading prefix
// rather than logging the whole write buffer as a single blob.
type lineWriter struct {
	logger       zerolog.Logger
	stream       string
	defaultLevel zerolog.Level

	pw *io.PipeWriter
}

// newLineWriter starts a background scanner over an io.Pipe and returns the
// write end. Callers must Close it when the child process exits so the
// scanning goroutine terminates.
func newLineWriter(logger zerolog.Logger, stream string, defaultLevel zerolog.Level) *lineWriter {
	pr, pw := io.Pipe()
	lw := &lineWriter{logger: logger, stream: stream, defaultLevel: defaultLevel, pw: pw}

	go func() {
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 4096), 1<<20)
		for scanner.Scan() {
			lw.emit(scanner.Text())
		}
	}()

	return lw
}

func (lw *lineWriter) Write(p []byte) (int, error) { return lw.pw.Write(p) }

func (lw *lineWriter) Close() error { return lw.pw.Close() }

// emit classifies a line by its leading prefix, matching Prosody's own log
// level tags ("error:", "warn:") so stdout/stderr plumbing does not flatten
// everything to a single level.
func (lw *lineWriter) emit(line string) {
	trimmed := strings.TrimSpace(line)
	lower := strings.ToLower(trimmed)

	event := func() *zerolog.Event {
		switch {
		case strings.HasPrefix(lower, "error"):
			return lw.logger.Error()
		case strings.HasPrefix(lower, "warn"):
			return lw.logger.Warn()
		case strings.HasPrefix(lower, "debug"):
			return lw.logger.Debug()
		default:
			return lw.logger.WithLevel(lw.defaultLevel)
		}
	}()

	event.Str("stream", lw.stream).Msg(trimmed)
}
