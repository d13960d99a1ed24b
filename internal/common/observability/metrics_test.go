// internal/common/observability/metrics_test.go

package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *metric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestRecordBuild_FlowsThroughMeter(t *testing.T) {
	reader := metric.NewManualReader()
	o := newWithReader("observability-test", reader)

	o.RecordBuild(context.Background(), "complete")
	o.RecordBuild(context.Background(), "complete")
	o.RecordBuild(context.Background(), "degraded_complete")

	m, ok := findMetric(collect(t, reader), "blueprints.built")
	require.True(t, ok, "build counter must be exported")
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	total := int64(0)
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Len(t, sum.DataPoints, 2, "one series per build state")
}

func TestRecordBuildDuration_FlowsThroughMeter(t *testing.T) {
	reader := metric.NewManualReader()
	o := newWithReader("observability-test", reader)

	o.RecordBuildDuration(context.Background(), 250*time.Millisecond, "complete")

	m, ok := findMetric(collect(t, reader), "blueprints.build_duration")
	require.True(t, ok, "build duration histogram must be exported")
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 250, hist.DataPoints[0].Sum, 1e-9)
}

func TestRecord_NoopWhenUninitialized(t *testing.T) {
	o := &Observability{}
	o.RecordBuild(context.Background(), "complete")
	o.RecordBuildDuration(context.Background(), time.Second, "complete")
	o.Shutdown()
}
