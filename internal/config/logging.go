package config

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide slog.Logger. debug selects
// slog.LevelDebug; otherwise slog.LevelInfo, matching the DEBUG
// setting from spec.md §6.
func NewLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
