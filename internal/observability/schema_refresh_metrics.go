package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SchemaRefreshMetrics tracks rebuilds of the GraphQL schema from the list
// definitions file, whether triggered by polling, the admin endpoint or
// startup.
type SchemaRefreshMetrics struct {
	attempts metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram

	lastSuccessUnix atomic.Int64
	activeLists     atomic.Int64
}

// InitSchemaRefreshMetrics registers the refresh instruments on the global
// meter provider.
func InitSchemaRefreshMetrics(logger *slog.Logger) (*SchemaRefreshMetrics, error) {
	meter := otel.Meter("cms-graphql")
	m := &SchemaRefreshMetrics{}

	var err error
	if m.attempts, err = meter.Int64Counter("cms.schema.refresh.total",
		metric.WithDescription("Total number of schema refresh attempts")); err != nil {
		return nil, fmt.Errorf("failed to create schema refresh counter: %w", err)
	}
	if m.failures, err = meter.Int64Counter("cms.schema.refresh.errors.total",
		metric.WithDescription("Total number of failed schema refresh attempts")); err != nil {
		return nil, fmt.Errorf("failed to create schema refresh error counter: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("cms.schema.refresh.duration",
		metric.WithDescription("Duration of schema refresh attempts in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("failed to create schema refresh duration histogram: %w", err)
	}

	if _, err = meter.Int64ObservableGauge("cms.schema.refresh.last_success_unix",
		metric.WithDescription("Unix timestamp of the last successful schema refresh"),
		metric.WithUnit("s"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			if value := m.lastSuccessUnix.Load(); value > 0 {
				o.Observe(value)
			}
			return nil
		})); err != nil {
		return nil, fmt.Errorf("failed to create schema refresh last success gauge: %w", err)
	}

	if _, err = meter.Int64ObservableGauge("cms.lists.active",
		metric.WithDescription("Number of lists served by the active schema"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.activeLists.Load())
			return nil
		})); err != nil {
		return nil, fmt.Errorf("failed to create active lists gauge: %w", err)
	}

	logger.Info("schema refresh metrics initialized")
	return m, nil
}

// RecordRefresh records one refresh attempt. lists is the list count of the
// new schema and only matters when success is true.
func (m *SchemaRefreshMetrics) RecordRefresh(ctx context.Context, duration time.Duration, success bool, trigger string, lists int) {
	byTrigger := attribute.String("trigger", trigger)
	outcome := metric.WithAttributes(byTrigger, attribute.Bool("success", success))

	m.attempts.Add(ctx, 1, outcome)
	m.duration.Record(ctx, float64(duration.Milliseconds()), outcome)
	if !success {
		m.failures.Add(ctx, 1, metric.WithAttributes(byTrigger))
		return
	}
	m.lastSuccessUnix.Store(time.Now().Unix())
	m.activeLists.Store(int64(lists))
}
