package server

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const logTimeFormat = "2006-01-02 15:04:05.000"

// maxFieldLen caps string values copied from the network into the operator log
const maxFieldLen = 100

// NewDefaultLogger returns the operator logger: human-readable lines on stderr
func NewDefaultLogger(debug bool) zerolog.Logger {
	return NewLogger(os.Stderr, debug)
}

// NewLogger writes console-formatted log lines to w
func NewLogger(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: logTimeFormat, NoColor: true}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// NewNullLogger discards all logs (for testing)
func NewNullLogger() zerolog.Logger {
	return zerolog.Nop()
}

// sanitizeValue truncates long client-supplied values
func sanitizeValue(s string) string {
	if len(s) > maxFieldLen {
		return s[:maxFieldLen] + "...[truncated]"
	}
	return s
}
