package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer uses the global OTel tracer provider.
var tracer = otel.Tracer("eventipc")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartEmitSpan starts a span around sending an event (and, for a
	// client, waiting for its reply).
	StartEmitSpan(ctx context.Context, role, event string) (context.Context, trace.Span)

	// StartDispatchSpan starts a span around handling a received event.
	StartDispatchSpan(ctx context.Context, role, event string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartEmitSpan starts a client span for request emits and a producer span
// for broadcasts.
func (m *otelSpanManager) StartEmitSpan(ctx context.Context, role, event string) (context.Context, trace.Span) {
	kind := trace.SpanKindProducer
	if role == "client" {
		kind = trace.SpanKindClient
	}
	return tracer.Start(ctx, "eventipc.emit "+event,
		trace.WithAttributes(
			attribute.String("eventipc.role", role),
			attribute.String("eventipc.event", event),
		),
		trace.WithSpanKind(kind),
	)
}

// StartDispatchSpan starts a server span for requests and a consumer span
// for broadcasts.
func (m *otelSpanManager) StartDispatchSpan(ctx context.Context, role, event string) (context.Context, trace.Span) {
	kind := trace.SpanKindConsumer
	if role == "server" {
		kind = trace.SpanKindServer
	}
	return tracer.Start(ctx, "eventipc.dispatch "+event,
		trace.WithAttributes(
			attribute.String("eventipc.role", role),
			attribute.String("eventipc.event", event),
		),
		trace.WithSpanKind(kind),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
