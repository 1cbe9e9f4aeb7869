package logging

import (
	"context"
	"log/slog"

	"toolbox/internal/services"
)

// Structured field keys shared by every toolbox log line.
const (
	FieldComponent     = "component"
	FieldTaskID        = "task_id"
	FieldOperation     = "operation"
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a line for filtering, e.g. "batch_progress".
	FieldEventType = "event_type"
	// FieldErrorHint carries a short next step for the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact states what a warning means for the user's result.
	FieldImpact = "impact"
)

// ContextFields returns the task id, operation and correlation id stored in
// ctx by the services context helpers.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if id, ok := services.TaskIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTaskID, id))
	}
	if op, ok := services.OperationFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldOperation, op))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns logger extended with the fields found in ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
