// Package logger builds the zerolog logger shared by the store, the HTTP
// handlers and the CLI.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger for local runs and a JSON logger otherwise.
func New(env, level string) zerolog.Logger {
	return NewWithWriter(env, level, os.Stderr)
}

func NewWithWriter(env, level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	out := w
	if env == "local" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "review-tracker").
		Logger()
}
