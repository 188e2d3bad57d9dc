package observability

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func withManualReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetMeterProvider(previous)
	})
	return reader
}

// collected flattens the int64 data points of every metric by name.
func collected(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, point := range data.DataPoints {
					out[m.Name] += point.Value
				}
			case metricdata.Gauge[int64]:
				for _, point := range data.DataPoints {
					out[m.Name] = point.Value
				}
			}
		}
	}
	return out
}

func TestSchemaRefreshMetrics_RecordRefresh(t *testing.T) {
	reader := withManualReader(t)
	metrics, err := InitSchemaRefreshMetrics(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordRefresh(ctx, 12*time.Millisecond, true, "startup", 3)
	metrics.RecordRefresh(ctx, 4*time.Millisecond, false, "poll", 0)

	got := collected(t, reader)
	assert.Equal(t, int64(2), got["cms.schema.refresh.total"])
	assert.Equal(t, int64(1), got["cms.schema.refresh.errors.total"])
	assert.Equal(t, int64(3), got["cms.lists.active"], "failed refreshes keep the previous list count")
	assert.InDelta(t, time.Now().Unix(), got["cms.schema.refresh.last_success_unix"], 5)
}
