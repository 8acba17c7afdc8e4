// Package logging builds the zerolog loggers used across the CLIs.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a structured JSON logger at the given level. An
// unparseable level falls back to info.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// NewConsole returns a human-friendly logger for interactive use.
func NewConsole(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
