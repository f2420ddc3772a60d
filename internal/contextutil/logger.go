// Package contextutil carries the request-scoped logger through
// context, so pipeline stages log with the request_id attached by the
// HTTP middleware.
package contextutil

import (
	"context"
	"log/slog"
)

type contextKey string

const loggerKey contextKey = "logger"

// LoggerFromContext returns the request-scoped logger, falling back to
// slog.Default outside a request (startup, tests).
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctxLogger := ctx.Value(loggerKey); ctxLogger != nil {
		if l, ok := ctxLogger.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}

// LoggerKey returns the context key the middleware stores the logger
// under.
func LoggerKey() contextKey {
	return loggerKey
}
