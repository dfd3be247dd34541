package cli

import (
	"io"
	"log/slog"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for --log-file.
const (
	logFileMaxSizeMB  = 10
	logFileMaxBackups = 3
	logFileMaxAgeDays = 28
)

// newLogger builds the process logger. Output goes to logFile when set,
// otherwise to stderr. An empty format picks text for terminals and JSON
// for everything else.
func newLogger(stderr io.Writer, level slog.Level, format, logFile string) (*slog.Logger, io.Closer) {
	var (
		w      = stderr
		closer io.Closer
	)
	if logFile != "" {
		lj := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
			MaxAge:     logFileMaxAgeDays,
		}
		w, closer = lj, lj
		if format == "" {
			format = "json"
		}
	}
	if format == "" {
		format = "json"
		if isTerminal(w) {
			format = "text"
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), closer
	}
	return slog.New(slog.NewJSONHandler(w, opts)), closer
}

// isTerminal reports whether w is a file attached to a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}
