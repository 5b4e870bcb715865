// Package rtlog provides the structured logging backbone shared by every
// runtime subsystem. It is grounded on the zerolog-instrumented bytecode VM
// found in the example corpus (rgehrsitz/rex), which logs opcode dispatch
// and stack transitions through github.com/rs/zerolog at Debug level.
package rtlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// base is the process-wide root logger. Subsystems derive a child logger
// from it via For, which stamps a "subsystem" field.
var base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
	With().Timestamp().Logger().Level(zerolog.InfoLevel)

// SetOutput redirects the root logger's sink; tests use this to capture
// output into an in-memory buffer.
func SetOutput(w io.Writer) {
	base = zerolog.New(w).With().Timestamp().Logger().Level(base.GetLevel())
}

// SetLevel adjusts the minimum emitted level across all subsystems.
func SetLevel(lvl zerolog.Level) {
	base = base.Level(lvl)
}

// For returns a logger tagged with the given subsystem name, e.g. "vm",
// "gc", "heap".
func For(subsystem string) zerolog.Logger {
	return base.With().Str("subsystem", subsystem).Logger()
}
