package logger

import (
	"io"
	"log/slog"
	"strings"

	"github.com/evanofslack/ddns-sync/internal/config"
	"github.com/lmittmann/tint"
)

// Configure installs the default slog logger for the given log config and
// returns it. Development environments get colored tint output, everything
// else gets JSON lines.
func Configure(cfg config.Log, w io.Writer) *slog.Logger {
	level := parseLogLevel(cfg.Level)
	var handler slog.Handler

	switch strings.ToLower(cfg.Env) {
	case "dev", "development":
		handler = tint.NewHandler(w, &tint.Options{Level: level})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	l := slog.New(handler).With("app", "ddns-sync")
	slog.SetDefault(l)
	return l
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
