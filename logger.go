package segkv

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the structured logger of a DB. Operation records share the
// field names key, start, end, emitted, found and error.
type Logger struct {
	*slog.Logger
}

// NewLogger returns a Logger writing to handler, or info-level text on
// stderr when handler is nil.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		return NewTextLogger(slog.LevelInfo)
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger returns a Logger writing JSON lines to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger returns a Logger writing logfmt text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger returns a Logger that drops every record.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// LogPut logs a put operation.
func (l *Logger) LogPut(ctx context.Context, key uint64, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "put failed",
			"key", key,
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "put completed",
			"key", key,
			"size", size,
		)
	}
}

// LogGet logs a get operation.
func (l *Logger) LogGet(ctx context.Context, key uint64, found bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "get failed",
			"key", key,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "get completed",
			"key", key,
			"found", found,
		)
	}
}

// LogScan logs a scan operation.
func (l *Logger) LogScan(ctx context.Context, start, end uint64, emitted, found int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "scan failed",
			"start", start,
			"end", end,
			"emitted", emitted,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "scan completed",
			"start", start,
			"end", end,
			"emitted", emitted,
			"found", found,
		)
	}
}

// LogClose logs closing the store.
func (l *Logger) LogClose(ctx context.Context, segments int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "close failed",
			"segments", segments,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "store closed",
			"segments", segments,
		)
	}
}
