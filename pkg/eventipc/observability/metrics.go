package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Drop reasons reported by RecordDropped.
const (
	DropTampered  = "tampered"
	DropMalformed = "malformed"
	DropUnhandled = "unhandled"
)

// MetricsRecorder records eventipc metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordSend records a frame written to a handle.
	RecordSend(ctx context.Context, role, event string, sizeBytes int)

	// RecordReceive records a frame decoded from a handle.
	RecordReceive(ctx context.Context, role, event string, sizeBytes int)

	// RecordDispatch records a handler invocation with its duration and error status.
	RecordDispatch(ctx context.Context, role, event string, duration time.Duration, err error)

	// RecordDialAttempt records one dial or listen attempt on a handle.
	RecordDialAttempt(ctx context.Context, handle string, err error)

	// RecordDropped records a received frame that was discarded.
	RecordDropped(ctx context.Context, role, reason string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	sent            metric.Int64Counter
	received        metric.Int64Counter
	frameSize       metric.Int64Histogram
	dispatchLatency metric.Float64Histogram
	dispatchErrors  metric.Int64Counter
	dialAttempts    metric.Int64Counter
	dropped         metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the shared OTel metrics instance.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventipc")

	sent, err := meter.Int64Counter("eventipc.messages.sent",
		metric.WithDescription("Number of frames sent"),
	)
	if err != nil {
		return nil, err
	}

	received, err := meter.Int64Counter("eventipc.messages.received",
		metric.WithDescription("Number of frames received and decoded"),
	)
	if err != nil {
		return nil, err
	}

	frameSize, err := meter.Int64Histogram("eventipc.messages.size_bytes",
		metric.WithDescription("Frame size on the wire in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	dispatchLatency, err := meter.Float64Histogram("eventipc.dispatch.latency_ms",
		metric.WithDescription("Handler latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	dispatchErrors, err := meter.Int64Counter("eventipc.dispatch.errors",
		metric.WithDescription("Number of handler failures"),
	)
	if err != nil {
		return nil, err
	}

	dialAttempts, err := meter.Int64Counter("eventipc.dial.attempts",
		metric.WithDescription("Number of dial and listen attempts"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter("eventipc.messages.dropped",
		metric.WithDescription("Number of received frames discarded"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		sent:            sent,
		received:        received,
		frameSize:       frameSize,
		dispatchLatency: dispatchLatency,
		dispatchErrors:  dispatchErrors,
		dialAttempts:    dialAttempts,
		dropped:         dropped,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordSend(ctx context.Context, role, event string, sizeBytes int) {
	attrs := metric.WithAttributes(
		attribute.String("role", role),
		attribute.String("event", event),
	)
	m.sent.Add(ctx, 1, attrs)
	m.frameSize.Record(ctx, int64(sizeBytes), attrs)
}

func (m *otelMetrics) RecordReceive(ctx context.Context, role, event string, sizeBytes int) {
	attrs := metric.WithAttributes(
		attribute.String("role", role),
		attribute.String("event", event),
	)
	m.received.Add(ctx, 1, attrs)
	m.frameSize.Record(ctx, int64(sizeBytes), attrs)
}

func (m *otelMetrics) RecordDispatch(ctx context.Context, role, event string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("role", role),
		attribute.String("event", event),
	)
	m.dispatchLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.dispatchErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordDialAttempt(ctx context.Context, handle string, err error) {
	m.dialAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("handle", handle),
		attribute.Bool("success", err == nil),
	))
}

func (m *otelMetrics) RecordDropped(ctx context.Context, role, reason string) {
	m.dropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", role),
		attribute.String("reason", reason),
	))
}
