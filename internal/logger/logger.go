package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New constructs a logger on stdout with the level from LOG_LEVEL and the
// format from LOG_FORMAT.
func New(service string) *slog.Logger {
	return NewWriter(service, os.Stdout)
}

// NewWriter is New with an explicit destination.
func NewWriter(service string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT"))) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("service", service)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
