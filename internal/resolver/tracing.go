package resolver

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cms-graphql/internal/gqlerrors"
)

const tracerName = "cms-graphql/resolver"

// startResolverSpan looks the tracer up on every call so a provider installed
// after startup is honored.
func startResolverSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// finishResolverSpan ends span with an outcome attribute. An empty outcome
// is derived from err. Failures also carry their KS_* code.
func finishResolverSpan(span trace.Span, err error, outcome string) {
	if span == nil {
		return
	}
	defer span.End()

	switch {
	case outcome != "":
	case err != nil:
		outcome = "error"
	default:
		outcome = "success"
	}
	span.SetAttributes(attribute.String("graphql.resolver.outcome", outcome))
	if err == nil {
		return
	}
	if code := gqlerrors.CodeOf(err); code != "" {
		span.SetAttributes(attribute.String("cms.error.code", string(code)))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
