package observability

import (
	"context"
	"log/slog"
	"strings"

	"cms-graphql/internal/gqlrequest"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// requestLabel is one string describing a GraphQL request, with its span
// attribute key and its log field key.
type requestLabel struct {
	spanKey, logKey, value string
}

// requestLabels lists the non-empty string labels of a request, shared by
// spans and logs so both name requests the same way.
func requestLabels(analysis *gqlrequest.Analysis, meta gqlrequest.ExecMeta) []requestLabel {
	var all []requestLabel
	if analysis != nil {
		all = append(all,
			requestLabel{"graphql.operation.requested_name", "operation_requested_name", analysis.RequestedOperationName},
			requestLabel{"graphql.operation.name", "operation_name", analysis.OperationName},
			requestLabel{"graphql.operation.type", "operation_type", analysis.OperationType},
			requestLabel{"graphql.operation.hash", "operation_hash", analysis.OperationHash},
		)
	}
	all = append(all,
		requestLabel{"auth.subject", "subject", meta.Subject},
		requestLabel{"cms.lists.fingerprint", "lists_fingerprint", meta.ListsFingerprint},
	)

	labels := all[:0]
	for _, l := range all {
		if l.value != "" {
			labels = append(labels, l)
		}
	}
	return labels
}

// GraphQLSpanAttributes builds the span attributes of a GraphQL request.
// Selection statistics are only present once an operation was selected.
func GraphQLSpanAttributes(analysis *gqlrequest.Analysis, meta gqlrequest.ExecMeta) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for _, l := range requestLabels(analysis, meta) {
		attrs = append(attrs, attribute.String(l.spanKey, l.value))
	}
	if analysis == nil {
		return attrs
	}

	if size := analysis.Envelope.DocumentSizeBytes; size > 0 {
		attrs = append(attrs, attribute.Int("graphql.document.size_bytes", size))
	}
	if analysis.Operation != nil {
		attrs = append(attrs,
			attribute.Int("graphql.query.field_count", analysis.FieldCount),
			attribute.Int("graphql.query.depth", analysis.SelectionDepth),
			attribute.Int("graphql.query.variable_count", analysis.VariableCount),
		)
	}
	if len(analysis.RootFields) > 0 {
		attrs = append(attrs, attribute.StringSlice("graphql.root_fields", analysis.RootFields))
	}
	return attrs
}

// GraphQLLogFields builds the slog fields attached to a request logger.
func GraphQLLogFields(ctx context.Context, analysis *gqlrequest.Analysis, meta gqlrequest.ExecMeta) []any {
	var fields []any
	for _, l := range requestLabels(analysis, meta) {
		fields = append(fields, slog.String(l.logKey, l.value))
	}
	if analysis != nil && len(analysis.RootFields) > 0 {
		fields = append(fields, slog.String("root_fields", strings.Join(analysis.RootFields, ",")))
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields, slog.String("trace_id", spanCtx.TraceID().String()))
	}
	return fields
}
