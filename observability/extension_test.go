package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/sequent/event"
	"github.com/xraph/sequent/observability"
)

func setupExtension() (*sdkmetric.ManualReader, *observability.MetricsExtension) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, observability.NewMetricsExtensionWithMeter(mp.Meter("test"))
}

func sumValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s: expected Sum[int64], got %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestMetricsExtension_Name(t *testing.T) {
	_, m := setupExtension()
	if m.Name() != "observability-metrics" {
		t.Errorf("unexpected extension name %q", m.Name())
	}
}

func TestMetricsExtension_EventCounters(t *testing.T) {
	reader, m := setupExtension()
	ctx := context.Background()
	e := event.NewBase("order.created")

	_ = m.OnEventDispatched(ctx, e, "order-1")
	_ = m.OnEventDispatched(ctx, e, nil)
	_ = m.OnEventHandled(ctx, e, time.Millisecond)
	_ = m.OnEventFailed(ctx, e, errors.New("boom"))
	_ = m.OnEventIgnored(ctx, e)

	if got := sumValue(t, reader, "sequent.event.dispatched"); got != 2 {
		t.Errorf("dispatched = %d, want 2", got)
	}
	if got := sumValue(t, reader, "sequent.event.completed"); got != 1 {
		t.Errorf("completed = %d, want 1", got)
	}
	if got := sumValue(t, reader, "sequent.event.failed"); got != 1 {
		t.Errorf("failed = %d, want 1", got)
	}
	if got := sumValue(t, reader, "sequent.event.ignored"); got != 1 {
		t.Errorf("ignored = %d, want 1", got)
	}
}

func TestMetricsExtension_SequenceGauge(t *testing.T) {
	reader, m := setupExtension()
	ctx := context.Background()

	_ = m.OnSequenceOpened(ctx, "a")
	_ = m.OnSequenceOpened(ctx, "b")
	_ = m.OnSequenceClosed(ctx, "a")

	if got := sumValue(t, reader, "sequent.sequences.active"); got != 1 {
		t.Errorf("active sequences = %d, want 1", got)
	}
}
