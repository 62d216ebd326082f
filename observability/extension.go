package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/sequent/event"
	"github.com/xraph/sequent/ext"
)

// Compile-time interface checks.
var (
	_ ext.Extension       = (*MetricsExtension)(nil)
	_ ext.EventIgnored    = (*MetricsExtension)(nil)
	_ ext.EventDispatched = (*MetricsExtension)(nil)
	_ ext.EventHandled    = (*MetricsExtension)(nil)
	_ ext.EventFailed     = (*MetricsExtension)(nil)
	_ ext.SequenceOpened  = (*MetricsExtension)(nil)
	_ ext.SequenceClosed  = (*MetricsExtension)(nil)
)

// meterName is the instrumentation scope name for sequent metrics.
const meterName = "github.com/xraph/sequent/observability"

// MetricsExtension records dispatcher-wide lifecycle metrics via OpenTelemetry.
// Register it as a sequent extension to automatically track dispatch rates,
// handler outcomes, and the number of live sequences.
type MetricsExtension struct {
	ignored    metric.Int64Counter
	dispatched metric.Int64Counter
	handled    metric.Int64Counter
	failed     metric.Int64Counter
	sequences  metric.Int64UpDownCounter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. If none is configured, noop instruments are used.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. This variant allows injecting a specific MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// On instrument creation errors the OTel API returns noop
	// instruments, so the extension degrades gracefully.
	ignored, _ := meter.Int64Counter(
		"sequent.event.ignored",
		metric.WithDescription("Events rejected by the listener's type check"),
		metric.WithUnit("{event}"),
	)
	dispatched, _ := meter.Int64Counter(
		"sequent.event.dispatched",
		metric.WithDescription("Events accepted and routed for processing"),
		metric.WithUnit("{event}"),
	)
	handled, _ := meter.Int64Counter(
		"sequent.event.completed",
		metric.WithDescription("Events handled successfully"),
		metric.WithUnit("{event}"),
	)
	failed, _ := meter.Int64Counter(
		"sequent.event.failed",
		metric.WithDescription("Events whose handler returned an error"),
		metric.WithUnit("{event}"),
	)
	sequences, _ := meter.Int64UpDownCounter(
		"sequent.sequences.active",
		metric.WithDescription("Serial queues currently registered"),
		metric.WithUnit("{sequence}"),
	)

	return &MetricsExtension{
		ignored:    ignored,
		dispatched: dispatched,
		handled:    handled,
		failed:     failed,
		sequences:  sequences,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnEventIgnored implements ext.EventIgnored.
func (m *MetricsExtension) OnEventIgnored(ctx context.Context, e event.Event) error {
	m.ignored.Add(ctx, 1, metric.WithAttributes(attribute.String("event_name", e.Name())))
	return nil
}

// OnEventDispatched implements ext.EventDispatched.
func (m *MetricsExtension) OnEventDispatched(ctx context.Context, e event.Event, key any) error {
	m.dispatched.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_name", e.Name()),
		attribute.Bool("sequenced", key != nil),
	))
	return nil
}

// OnEventHandled implements ext.EventHandled.
func (m *MetricsExtension) OnEventHandled(ctx context.Context, e event.Event, _ time.Duration) error {
	m.handled.Add(ctx, 1, metric.WithAttributes(attribute.String("event_name", e.Name())))
	return nil
}

// OnEventFailed implements ext.EventFailed.
func (m *MetricsExtension) OnEventFailed(ctx context.Context, e event.Event, _ error) error {
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("event_name", e.Name())))
	return nil
}

// OnSequenceOpened implements ext.SequenceOpened.
func (m *MetricsExtension) OnSequenceOpened(ctx context.Context, _ any) error {
	m.sequences.Add(ctx, 1)
	return nil
}

// OnSequenceClosed implements ext.SequenceClosed.
func (m *MetricsExtension) OnSequenceClosed(ctx context.Context, _ any) error {
	m.sequences.Add(ctx, -1)
	return nil
}
