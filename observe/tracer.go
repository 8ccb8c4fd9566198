package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ServiceMeta contains metadata about a registered service for telemetry purposes.
type ServiceMeta struct {
	ID          string   // Fully qualified service ID (type.name or just name)
	Type        string   // Service type/namespace (may be empty)
	Name        string   // Service name (required, unique per process)
	Criticality string   // Declared criticality tier (CRITICAL/HIGH/MEDIUM/LOW)
	Tags        []string // Free-form tags for discovery (optional)
}

// SpanName returns the deterministic span name for this service.
// Format: fabric.exec.<type>.<name> or fabric.exec.<name>
func (m ServiceMeta) SpanName() string {
	if m.Type != "" {
		return "fabric.exec." + m.Type + "." + m.Name
	}
	return "fabric.exec." + m.Name
}

// ServiceID returns the fully qualified service identifier.
// If ID is set, returns it. Otherwise constructs from type and name.
func (m ServiceMeta) ServiceID() string {
	if m.ID != "" {
		return m.ID
	}
	if m.Type != "" {
		return m.Type + "." + m.Name
	}
	return m.Name
}

// Validate checks that the metadata is usable for telemetry and registration.
func (m ServiceMeta) Validate() error {
	if m.Name == "" {
		return ErrMissingToolName
	}
	return nil
}

// Tracer wraps OpenTelemetry tracing with service-execution span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan returns a child of ctx carrying the new span; it reports no error.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a service execution.
	StartSpan(ctx context.Context, meta ServiceMeta) (context.Context, trace.Span)

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

// StartSpan starts a new span with service metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta ServiceMeta) (context.Context, trace.Span) {
	spanName := meta.SpanName()

	attrs := []attribute.KeyValue{
		attribute.String("fabric.service.id", meta.ServiceID()),
		attribute.String("fabric.service.name", meta.Name),
		attribute.Bool("fabric.service.error", false), // updated in EndSpan on error
	}

	if meta.Type != "" {
		attrs = append(attrs, attribute.String("fabric.service.type", meta.Type))
	}
	if meta.Criticality != "" {
		attrs = append(attrs, attribute.String("fabric.service.criticality", meta.Criticality))
	}
	if len(meta.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("fabric.service.tags", meta.Tags))
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
		span.SetAttributes(attribute.Bool("fabric.service.error", true))
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

func (t *noopTracer) StartSpan(ctx context.Context, meta ServiceMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
