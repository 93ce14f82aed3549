package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/clubops/guardrail/guard"
)

// MeterSink bridges guard events onto OpenTelemetry instruments.
type MeterSink struct {
	events      metric.Int64Counter
	utilization metric.Float64Gauge
	retryDelay  metric.Float64Histogram
	queueDepth  metric.Int64Gauge
}

// NewMeterSink creates a sink recording on the given meter.
func NewMeterSink(meter metric.Meter) (*MeterSink, error) {
	events, err := meter.Int64Counter(
		"guard.events",
		metric.WithDescription("Protected-call events by name"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	utilization, err := meter.Float64Gauge(
		"guard.pool.utilization",
		metric.WithDescription("Pool utilization percentage"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return nil, err
	}

	retryDelay, err := meter.Float64Histogram(
		"guard.retry.delay_ms",
		metric.WithDescription("Scheduled backoff delay in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64Gauge(
		"guard.pool.queued",
		metric.WithDescription("Callers waiting for a pool slot"),
		metric.WithUnit("{caller}"),
	)
	if err != nil {
		return nil, err
	}

	return &MeterSink{
		events:      events,
		utilization: utilization,
		retryDelay:  retryDelay,
		queueDepth:  queueDepth,
	}, nil
}

// Emit records ev on the sink's instruments.
func (s *MeterSink) Emit(ctx context.Context, ev guard.Event) {
	attrs := []attribute.KeyValue{
		attribute.String("event", ev.Name),
	}
	if ev.Source != "" {
		attrs = append(attrs, attribute.String("source", ev.Source))
	}
	opt := metric.WithAttributes(attrs...)

	s.events.Add(ctx, 1, opt)

	if ev.Pool != nil {
		sourceOpt := opt
		if ev.Source != "" {
			sourceOpt = metric.WithAttributes(attribute.String("source", ev.Source))
		}
		s.utilization.Record(ctx, ev.Pool.Utilization, sourceOpt)
		s.queueDepth.Record(ctx, int64(ev.Pool.Queued), sourceOpt)
	}
	if ev.Name == guard.EventRetryAttempt {
		s.retryDelay.Record(ctx, float64(ev.Delay.Milliseconds()), opt)
	}
}
