package eventbus

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// busMetrics holds the OpenTelemetry instruments of a bus.
// A nil *busMetrics records nothing.
type busMetrics struct {
	published metric.Int64Counter
	executed  metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

func newBusMetrics(name string) *busMetrics {
	meter := otel.Meter(name)
	m := &busMetrics{}
	m.published, _ = meter.Int64Counter("event.published",
		metric.WithDescription("Total number of events published"),
		metric.WithUnit("{event}"))
	m.executed, _ = meter.Int64Counter("event.handler.executed",
		metric.WithDescription("Handler invocations that completed successfully"),
		metric.WithUnit("{invocation}"))
	m.failed, _ = meter.Int64Counter("event.handler.failed",
		metric.WithDescription("Handler invocations that returned an error, panicked or timed out"),
		metric.WithUnit("{invocation}"))
	m.duration, _ = meter.Float64Histogram("event.handler.duration",
		metric.WithDescription("Handler execution time"),
		metric.WithUnit("ms"))
	return m
}

func (m *busMetrics) recordPublished(ctx context.Context, eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.Add(ctx, 1, metric.WithAttributes(attribute.String("event", eventType)))
}

func (m *busMetrics) recordHandled(ctx context.Context, eventType string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("event", eventType))
	if err != nil {
		if m.failed != nil {
			m.failed.Add(ctx, 1, attrs)
		}
	} else if m.executed != nil {
		m.executed.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(d)/float64(time.Millisecond), attrs)
	}
}
