package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GraphQLMetrics holds the request level and list operation level instruments.
type GraphQLMetrics struct {
	requestDuration   metric.Float64Histogram
	requestCounter    metric.Int64Counter
	errorCounter      metric.Int64Counter
	activeRequests    metric.Int64UpDownCounter
	queryDepth        metric.Int64Histogram
	operationDuration metric.Float64Histogram
	operationCounter  metric.Int64Counter
	itemsReturned     metric.Int64Histogram
}

// InitGraphQLMetrics creates the instruments on the global meter provider.
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	meter := otel.Meter("cms-graphql")
	m := &GraphQLMetrics{}
	var err error

	if m.requestDuration, err = meter.Float64Histogram("graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}
	if m.requestCounter, err = meter.Int64Counter("graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests")); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	if m.errorCounter, err = meter.Int64Counter("graphql.errors.total",
		metric.WithDescription("GraphQL errors returned, by error code")); err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}
	if m.activeRequests, err = meter.Int64UpDownCounter("graphql.requests.active",
		metric.WithDescription("Number of in-flight GraphQL requests")); err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}
	if m.queryDepth, err = meter.Int64Histogram("graphql.query.depth",
		metric.WithDescription("Selection depth of GraphQL operations")); err != nil {
		return nil, fmt.Errorf("failed to create query depth histogram: %w", err)
	}
	if m.operationDuration, err = meter.Float64Histogram("cms.operation.duration",
		metric.WithDescription("Duration of list operations in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("failed to create operation duration histogram: %w", err)
	}
	if m.operationCounter, err = meter.Int64Counter("cms.operations.total",
		metric.WithDescription("Total number of list operations by list, operation and outcome")); err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}
	if m.itemsReturned, err = meter.Int64Histogram("cms.items.returned",
		metric.WithDescription("Number of items returned by a findMany")); err != nil {
		return nil, fmt.Errorf("failed to create items returned histogram: %w", err)
	}
	return m, nil
}

// RecordRequest records one GraphQL request. errorCodes holds the
// extensions.code of every error in the response; it is empty on success.
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, operationType string, errorCodes []string) {
	attrs := metric.WithAttributes(
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", len(errorCodes) > 0),
	)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.requestCounter.Add(ctx, 1, attrs)

	for _, code := range errorCodes {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation_type", operationType),
			attribute.String("code", code),
		))
	}
}

// RecordQueryDepth records the selection depth of an operation.
func (m *GraphQLMetrics) RecordQueryDepth(ctx context.Context, depth int64, operationType string) {
	m.queryDepth.Record(ctx, depth, metric.WithAttributes(
		attribute.String("operation_type", operationType),
	))
}

// RecordOperation records one list operation. code is the error
// classification, or "ok".
func (m *GraphQLMetrics) RecordOperation(ctx context.Context, listKey, operation, code string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("list", listKey),
		attribute.String("operation", operation),
		attribute.String("code", code),
	)
	m.operationDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.operationCounter.Add(ctx, 1, attrs)
}

// RecordItemsReturned records the size of a findMany result.
func (m *GraphQLMetrics) RecordItemsReturned(ctx context.Context, listKey string, count int) {
	m.itemsReturned.Record(ctx, int64(count), metric.WithAttributes(
		attribute.String("list", listKey),
	))
}

// IncrementActiveRequests increments the in-flight request gauge.
func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the in-flight request gauge.
func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes the GraphQL instruments and logs once they exist.
func InitMetrics(logger *slog.Logger) (*GraphQLMetrics, error) {
	metrics, err := InitGraphQLMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GraphQL metrics: %w", err)
	}

	logger.Info("custom GraphQL metrics initialized")
	return metrics, nil
}

type graphQLMetricsContextKey struct{}

// ContextWithGraphQLMetrics stores GraphQL metrics in the provided context.
func ContextWithGraphQLMetrics(ctx context.Context, metrics *GraphQLMetrics) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, graphQLMetricsContextKey{}, metrics)
}

// GraphQLMetricsFromContext retrieves GraphQL metrics from the context.
func GraphQLMetricsFromContext(ctx context.Context) *GraphQLMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(graphQLMetricsContextKey{}).(*GraphQLMetrics)
	return metrics
}
