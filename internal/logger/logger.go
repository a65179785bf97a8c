package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/pbaity/folio/pkg/models"
)

var globalLogger atomic.Pointer[slog.Logger]

// Init initializes the global logger based on application settings.
// Output goes to w, or to os.Stderr when w is nil so that stdout stays free
// for command output. Empty level and format fall back to info and text.
func Init(settings models.ApplicationSettings, w io.Writer) error {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Level
	switch strings.ToLower(settings.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level specified: %q", settings.LogLevel)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(settings.LogFormat) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("invalid log format specified: %q", settings.LogFormat)
	}

	l := slog.New(handler)
	globalLogger.Store(l)
	slog.SetDefault(l)
	l.Debug("Logger initialized", "level", level.String(), "format", settings.LogFormat)
	return nil
}

// L returns the initialized global logger instance, or slog.Default() when
// Init has not been called yet.
func L() *slog.Logger {
	if l := globalLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}
