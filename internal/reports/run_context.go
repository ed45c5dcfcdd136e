package reports

import (
	"context"
	"log/slog"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/logging"
)

type runContextKey int

const runContextKeyLogger runContextKey = 0

// WithLogger attaches the logger a run should write to.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, runContextKeyLogger, logger)
}

// Logger returns the run logger carried by ctx, or fallback, or the default logger.
func Logger(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(runContextKeyLogger).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return logging.OrDefault(fallback)
}
