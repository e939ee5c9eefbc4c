package facevec

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/facevec/persistence"
)

// Logger wraps slog.Logger with index-specific helpers.
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
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithUser adds a user_id field to the logger.
func (l *Logger) WithUser(user UserID) *Logger {
	return &Logger{
		Logger: l.Logger.With("user_id", int64(user)),
	}
}

// LogAdd logs an add operation.
func (l *Logger) LogAdd(ctx context.Context, user UserID, pos uint32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed",
			"user_id", int64(user),
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "add completed",
		"user_id", int64(user),
		"position", pos,
	)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"k", k,
		"results", resultsFound,
	)
}

// LogDelete logs a delete-by-user operation.
func (l *Logger) LogDelete(ctx context.Context, user UserID, removed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"user_id", int64(user),
			"removed", removed,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "delete completed",
		"user_id", int64(user),
		"removed", removed,
	)
}

// LogPersist logs a snapshot save.
func (l *Logger) LogPersist(ctx context.Context, count int, gen uuid.UUID, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "persist failed",
			"count", count,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "persist completed",
		"count", count,
		"generation", gen.String(),
		"duration", duration,
	)
}

// LogLoad logs the outcome of loading the snapshot at open.
// A missing snapshot is informational; anything else is a warning since the
// index continues empty.
func (l *Logger) LogLoad(ctx context.Context, count int, gen uuid.UUID, err error) {
	switch {
	case err == nil:
		l.InfoContext(ctx, "snapshot loaded",
			"count", count,
			"generation", gen.String(),
		)
	case errors.Is(err, persistence.ErrNoSnapshot):
		l.InfoContext(ctx, "no snapshot found, starting with an empty index")
	default:
		l.WarnContext(ctx, "snapshot unusable, starting with an empty index",
			"error", err,
		)
	}
}
