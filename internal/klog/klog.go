// Package klog wraps zerolog with the leveling policy spec.md §7 assigns
// to each error category: client protocol violations and configuration
// rejections log at WARN/ERROR with structured fields rather than
// formatted strings, and nothing in this package ever panics on a
// caller's behalf.
package klog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide structured logger. It is never a package
// level global passed implicitly: callers receive it from kcore.Context
// and pass it on explicitly, matching the "no static lifetime" design
// note.
type Logger struct {
	zerolog.Logger
}

// New builds a Logger writing to w (os.Stderr in production, a
// bytes.Buffer in tests that want to assert on log output).
func New(w io.Writer, debug bool) Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return Logger{l}
}

// NewConsole is New but with zerolog's human-readable console writer
// on stderr; kcore.New uses it for every Context, whether or not
// stderr is a terminal.
func NewConsole(debug bool) Logger {
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return New(cw, debug)
}

// With returns a derived logger carrying a component name, mirroring
// how every subsystem (scene, koutput, seat, registry, outputlayout)
// tags its own log lines.
func (l Logger) With(component string) Logger {
	return Logger{l.Logger.With().Str("component", component).Logger()}
}
