package logging

import (
	"context"
	"log/slog"

	"docmill/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldDocumentID is the standardized structured logging key for document registry identifiers.
	FieldDocumentID = "document_id"
	// FieldProcessorID is the standardized structured logging key for processor registry identifiers.
	FieldProcessorID = "processor_id"
	// FieldCycle is the standardized structured logging key for control-loop names.
	FieldCycle = "cycle"
	// FieldInstanceID is the standardized structured logging key for compute instance identifiers.
	FieldInstanceID = "instance_id"
	// FieldEventType tags log records with a machine-filterable event category.
	FieldEventType = "event_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.DocumentIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldDocumentID, id))
	}
	if id, ok := services.ProcessorIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldProcessorID, id))
	}
	if cycle, ok := services.CycleFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCycle, cycle))
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
	return logger.With(attrsToArgs(fields)...)
}
