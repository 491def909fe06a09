package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
)

var level = new(slog.LevelVar)

// basic global logger, JSON to stdout.
var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func Logger() *slog.Logger {
	return logger.Load()
}

// SetOutput redirects the global logger, e.g. to stderr for interactive CLIs.
func SetOutput(w io.Writer) {
	logger.Store(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// SetLevel accepts debug, info, warn or error. Unknown values mean info.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return Logger().With(kv...)
}

// WithRequestID stores a request_id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestIDFromContext returns the request_id, or "".
func RequestIDFromContext(ctx context.Context) string {
	reqID, _ := ctx.Value(ctxKeyRequestID).(string)
	return reqID
}

// LoggerFromContext adds request_id if present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	reqID := RequestIDFromContext(ctx)
	if reqID == "" {
		return Logger()
	}
	return Logger().With("request_id", reqID)
}
