// Package observability provides structured logging for the origin server.
package observability

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/hlsvod/hlsvod/internal/config"
	"github.com/m-mizutani/masq"
)

// GlobalLogLevel is shared so the level can be changed at runtime (e.g. via
// a future SIGHUP handler) without rebuilding every logger in the process.
var GlobalLogLevel = &slog.LevelVar{}

// enableAccessLogging gates the per-request access-log middleware.
var enableAccessLogging atomic.Bool

func init() {
	enableAccessLogging.Store(true)
}

// SetAccessLogging toggles the chi access-log middleware at runtime.
func SetAccessLogging(enabled bool) { enableAccessLogging.Store(enabled) }

// AccessLoggingEnabled reports the current access-log toggle.
func AccessLoggingEnabled() bool { return enableAccessLogging.Load() }

// NewLogger builds the process-wide slog.Logger from configuration.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// sourcePathRedactor hides local filesystem layout from logs: the service
// logs source_path on every index/cache-miss event, and operators often
// don't want their on-disk library layout showing up verbatim in aggregated
// logs even though it isn't a credential.
func sourcePathRedactor() func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(
		masq.WithFieldName("source_path"),
		masq.WithFieldName("SourcePath"),
	)
}

// NewLoggerWithWriter creates a logger writing to w, honoring cfg.Level
// (dynamically, via GlobalLogLevel), cfg.Format (json/text) and
// cfg.RedactPaths.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	GlobalLogLevel.Set(parseLevel(cfg.Level))

	var redactor func(groups []string, a slog.Attr) slog.Attr
	if cfg.RedactPaths {
		redactor = sourcePathRedactor()
	}

	opts := &slog.HandlerOptions{
		Level:     GlobalLogLevel,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if redactor != nil {
				a = redactor(groups, a)
			}
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLogLevel changes the global log level at runtime.
func SetLogLevel(level string) {
	GlobalLogLevel.Set(parseLevel(level))
}
