package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	cycleIDKey   contextKey = "cycle_id"
	cycleTypeKey contextKey = "cycle_type"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID adds the request id to ctx and returns the enriched logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	enriched := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, enriched), enriched
}

// WithCycle tags ctx with a sync cycle so every log line of the run can be correlated
func WithCycle(ctx context.Context, logger *zap.Logger, cycleType, cycleID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, cycleTypeKey, cycleType)
	ctx = context.WithValue(ctx, cycleIDKey, cycleID)
	enriched := logger.With(zap.String("cycle_type", cycleType), zap.String("cycle_id", cycleID))
	return WithContext(ctx, enriched), enriched
}

// GetRequestID retrieves the request id from context
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey).(string)
	return requestID
}

// GetCycleID retrieves the sync cycle id from context
func GetCycleID(ctx context.Context) string {
	cycleID, _ := ctx.Value(cycleIDKey).(string)
	return cycleID
}

// WithTraceContext adds trace_id and span_id from the span in ctx.
// The logger is returned unchanged when there is no valid span.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}

// L returns the context logger enriched with trace correlation.
//
//	logger.L(ctx).Info("Drained batch", zap.Int("selected", n))
func L(ctx context.Context) *zap.Logger {
	return WithTraceContext(ctx, FromContext(ctx))
}
