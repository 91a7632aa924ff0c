// Package phlexlog threads a zerolog.Logger through the engine's
// long-lived components via functional options, wrapping zerolog's
// leveled, field-oriented Event API.
package phlexlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Nop is a logger that discards everything; it is the default for
// components constructed without an explicit logger.
var Nop = zerolog.Nop()

// New builds a human-readable console logger writing to w, suitable for
// demos and ad hoc debugging.
func New(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	return zerolog.New(console).With().Timestamp().Logger()
}

// WithComponent returns a child logger tagging every event with
// component=name.
func WithComponent(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
