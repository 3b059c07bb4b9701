// Package logging builds the zerolog logger shared by all components. The
// logger is passed by value into each component rather than kept as a
// package-level global.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to stderr at the given level. Unknown level
// strings fall back to info. With json set the output is raw JSON events,
// otherwise a human-readable console format is used.
func New(level string, json bool) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if !json {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(parsed).With().Timestamp().Logger()
}
