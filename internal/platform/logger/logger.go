package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a structured JSON logger using slog at info level.
func New() *slog.Logger {
	return NewWithLevel("info")
}

// NewWithLevel returns a JSON logger at the named level (debug, info, warn, error).
// Unknown names fall back to info.
func NewWithLevel(level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
