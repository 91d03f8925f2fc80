// Package logger builds the process-wide structured logger.  Text output
// for local development, JSON when LOG_FORMAT=json.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a slog.Logger configured from the given level and format
// strings (typically config.LogLevel / config.LogFormat).
func New(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
