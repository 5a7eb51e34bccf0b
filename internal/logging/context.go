package logging

import (
	"context"
	"log/slog"

	"glass/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTimelineID is the standardized structured logging key for timeline identifiers.
	FieldTimelineID = "timeline_id"
	// FieldStage is the standardized structured logging key for ingestion stage names.
	FieldStage = "stage"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering (stage_start, stage_failure, ...).
	FieldEventType = "event_type"
	// FieldErrorHint carries an operator-facing next step.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the error taxonomy label.
	FieldErrorKind = "error_kind"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldProvider names the transcription provider handling a request.
	FieldProvider = "provider"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.TimelineIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTimelineID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return slog.New(logger.Handler().WithAttrs(fields))
}

// WithTimeline tags the logger with a timeline id.
func WithTimeline(logger *slog.Logger, timelineID string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if timelineID == "" {
		return logger
	}
	return logger.With(String(FieldTimelineID, timelineID))
}

// WithStage tags the logger with a stage name.
func WithStage(logger *slog.Logger, stage string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if stage == "" {
		return logger
	}
	return logger.With(String(FieldStage, stage))
}
