// Package observability provides metric recording for the event core.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records event dispatch metrics.
type MetricsRecorder interface {
	// RecordDispatch records a completed handler run for a topic.
	RecordDispatch(ctx context.Context, topic string, priority uint8, duration time.Duration)

	// RecordPreemption records the current handler being suspended for a
	// higher-priority event.
	RecordPreemption(ctx context.Context)

	// RecordDiscard records an event dropped because no handler was
	// subscribed to its topic.
	RecordDiscard(ctx context.Context, topic string)

	// RecordTimerFired records a timer expiration.
	RecordTimerFired(ctx context.Context, recurring bool)
}

type otelMetrics struct {
	dispatches      metric.Int64Counter
	dispatchLatency metric.Float64Histogram
	preemptions     metric.Int64Counter
	discards        metric.Int64Counter
	timerFirings    metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// NewMetricsRecorder returns the OTel-backed recorder, falling back to a
// no-op recorder if instrument creation fails.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		return NoopMetrics{}
	}
	return m
}

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("moe-serifu-agent")

	dispatches, err := meter.Int64Counter("msa.event.dispatches",
		metric.WithDescription("Number of handled events"),
	)
	if err != nil {
		return nil, err
	}

	dispatchLatency, err := meter.Float64Histogram("msa.event.dispatch_latency_ms",
		metric.WithDescription("Handler run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	preemptions, err := meter.Int64Counter("msa.event.preemptions",
		metric.WithDescription("Number of handler preemptions"),
	)
	if err != nil {
		return nil, err
	}

	discards, err := meter.Int64Counter("msa.event.discards",
		metric.WithDescription("Number of events discarded with no subscriber"),
	)
	if err != nil {
		return nil, err
	}

	timerFirings, err := meter.Int64Counter("msa.timer.firings",
		metric.WithDescription("Number of timer expirations"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		dispatches:      dispatches,
		dispatchLatency: dispatchLatency,
		preemptions:     preemptions,
		discards:        discards,
		timerFirings:    timerFirings,
	}, nil
}

func (m *otelMetrics) RecordDispatch(ctx context.Context, topic string, priority uint8, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.Int("priority", int(priority)),
	)
	m.dispatches.Add(ctx, 1, attrs)
	m.dispatchLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordPreemption(ctx context.Context) {
	m.preemptions.Add(ctx, 1)
}

func (m *otelMetrics) RecordDiscard(ctx context.Context, topic string) {
	m.discards.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *otelMetrics) RecordTimerFired(ctx context.Context, recurring bool) {
	m.timerFirings.Add(ctx, 1, metric.WithAttributes(attribute.Bool("recurring", recurring)))
}

// NoopMetrics discards all recordings.
type NoopMetrics struct{}

func (NoopMetrics) RecordDispatch(context.Context, string, uint8, time.Duration) {}
func (NoopMetrics) RecordPreemption(context.Context)                             {}
func (NoopMetrics) RecordDiscard(context.Context, string)                        {}
func (NoopMetrics) RecordTimerFired(context.Context, bool)                       {}
