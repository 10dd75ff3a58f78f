package bootstrap

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger returns a JSON logger tagged with the service ID and installs it
// as the process default.
func NewLogger(w io.Writer, serviceID, level string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})).
		With("service", serviceID)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
