package engine

import "github.com/rs/zerolog"

// Option configures an Engine at construction via a functional-options
// pattern; the engine itself takes no config file, so options are the
// entire configuration surface.
type Option func(*Engine)

// WithLogger installs a structured logger; the default discards
// everything (phlexlog.Nop).
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithPendingHighWaterMark sets the number of partially-joined records
// above which a node logs a join-buffer warning. The buffer itself is
// not capped and no backpressure is applied. 0 (the default) disables
// the warning.
func WithPendingHighWaterMark(n int) Option {
	return func(e *Engine) { e.pendingHighWaterMark = n }
}
