package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// RequestMeta contains metadata about an MCP tool-call action for telemetry purposes.
type RequestMeta struct {
	ID        string   // Fully qualified action ID (namespace.name or just name)
	Namespace string   // Server namespace the action belongs to (may be empty)
	Name      string   // Action name, e.g. "sheets.read" (required)
	Version   string   // Gateway version handling the action (optional)
	Tags      []string // Action tags for dashboards/filtering (optional)
	Category  string   // Action category, e.g. "read", "write", "admin" (optional)
}

// SpanName returns the deterministic span name for this action.
// Format: mcp.request.<namespace>.<name> or mcp.request.<name>
func (m RequestMeta) SpanName() string {
	if m.Namespace != "" {
		return "mcp.request." + m.Namespace + "." + m.Name
	}
	return "mcp.request." + m.Name
}

// ActionID returns the fully qualified action identifier.
// If ID field is set, returns it. Otherwise constructs from namespace and name.
func (m RequestMeta) ActionID() string {
	if m.ID != "" {
		return m.ID
	}
	if m.Namespace != "" {
		return m.Namespace + "." + m.Name
	}
	return m.Name
}

// Validate returns ErrMissingActionName if Name is empty.
func (m RequestMeta) Validate() error {
	if m.Name == "" {
		return ErrMissingActionName
	}
	return nil
}

// Tracer wraps OpenTelemetry tracing with action-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan must honor cancellation/deadlines and return ctx.Err() when canceled.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for an action invocation.
	StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// newTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with action metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	spanName := meta.SpanName()

	// Build attributes
	attrs := []attribute.KeyValue{
		attribute.String("mcp.action_id", meta.ActionID()),
		attribute.String("mcp.action_name", meta.Name),
		attribute.Bool("mcp.action_error", false), // Will be updated in EndSpan if error
	}

	// Add namespace if present
	if meta.Namespace != "" {
		attrs = append(attrs, attribute.String("mcp.server_namespace", meta.Namespace))
	}

	// Add optional attributes if present
	if meta.Version != "" {
		attrs = append(attrs, attribute.String("mcp.action_version", meta.Version))
	}
	if meta.Category != "" {
		attrs = append(attrs, attribute.String("mcp.action_category", meta.Category))
	}
	if len(meta.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("mcp.action_tags", meta.Tags))
	}

	ctx, span := t.tracer.Start(ctx, spanName,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("mcp.action_error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
