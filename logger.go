package engramgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with engramgo-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogStore logs a store operation.
func (l *Logger) LogStore(ctx context.Context, id uint64, key string, links int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "store failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "store completed",
			"id", id,
			"key", key,
			"links", links,
		)
	}
}

// LogBulkStore logs a bulk store operation.
func (l *Logger) LogBulkStore(ctx context.Context, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "bulk store completed with failures",
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
	} else {
		l.InfoContext(ctx, "bulk store completed",
			"count", count,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, key string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"key", key,
		)
	}
}

// LogModeSwitch logs a durability mode transition.
func (l *Logger) LogModeSwitch(ctx context.Context, mode string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "mode switch failed",
			"mode", mode,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "mode switch completed",
			"mode", mode,
		)
	}
}

// LogArchive logs a snapshot archive operation.
func (l *Logger) LogArchive(ctx context.Context, name string, size int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "archive failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "archive uploaded",
			"name", name,
			"size", size,
		)
	}
}
