package services

import "context"

type contextKey string

const (
	documentIDKey contextKey = "document_id"
	cycleKey      contextKey = "cycle"
	processorKey  contextKey = "processor_id"
)

// WithDocumentID annotates context with the document registry identifier.
func WithDocumentID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, documentIDKey, id)
}

// DocumentIDFromContext extracts the document identifier if present.
func DocumentIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(documentIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithCycle annotates context with the control-loop name driving the work.
func WithCycle(ctx context.Context, cycle string) context.Context {
	if cycle == "" {
		return ctx
	}
	return context.WithValue(ctx, cycleKey, cycle)
}

// CycleFromContext returns the control-loop name if present.
func CycleFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(cycleKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithProcessorID annotates context with the processor registry identifier.
func WithProcessorID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, processorKey, id)
}

// ProcessorIDFromContext extracts the processor identifier if present.
func ProcessorIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(processorKey)
	if val, ok := v.(int64); ok {
		return val, true
	}
	return 0, false
}
