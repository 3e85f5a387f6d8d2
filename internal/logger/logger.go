// Package logger wires structured logging for the scanner processes.
// Init installs a JSON slog handler tagged with the service name; the
// trace helpers stamp every record of one scan pass with a shared ID so
// a pass can be followed across the orchestrator, journal and publisher.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"stock-scannerv1/internal/model"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)

	// Set as default so log/slog.Info() etc. also use structured output
	slog.SetDefault(logger)

	return logger
}

// WithTraceID stores a trace ID in the context for downstream propagation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace ID from context. Returns "" if not set.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// GenerateTraceID creates a trace ID for one scan pass from a prefix and
// the pass start time. Format: "{prefix}-{unixNano}".
func GenerateTraceID(prefix string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", prefix, ts.UnixNano())
}

// SymbolAttr tags a log record with the symbol a scan event concerns.
func SymbolAttr(sym model.Symbol) slog.Attr {
	return slog.String("symbol", string(sym))
}

// ErrAttr renders an error uniformly across scan logs.
func ErrAttr(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// LogWithTrace returns slog attributes including the trace ID from context.
// Usage: slog.Info("msg", logger.LogWithTrace(ctx)...)
func LogWithTrace(ctx context.Context) []any {
	tid := TraceID(ctx)
	if tid == "" {
		return nil
	}
	return []any{slog.String("trace_id", tid)}
}
