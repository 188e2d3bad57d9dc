package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"cms-graphql/internal/gqlrequest"
	"cms-graphql/internal/logging"
	"cms-graphql/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// GraphQLTracingMiddleware instruments GraphQL execution with an inner span.
// List operations started by the resolvers become its children.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalysisFromContext(r.Context())
			if analysis == nil || strings.TrimSpace(analysis.Envelope.Query) == "" {
				next.ServeHTTP(w, r)
				return
			}
			meta, _ := gqlrequest.ExecMetaFromContext(r.Context())

			tracer := otel.Tracer("cms-graphql/graphql")
			ctx, span := tracer.Start(r.Context(), "graphql.execute")
			defer span.End()
			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				reqLogger := logging.FromContext(ctx).WithFields(
					slog.String("trace_id", spanCtx.TraceID().String()),
					slog.String("span_id", spanCtx.SpanID().String()),
				)
				ctx = logging.WithLogger(ctx, reqLogger)
			}

			if span.IsRecording() {
				span.SetAttributes(observability.GraphQLSpanAttributes(analysis, meta)...)
			}

			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			if span.IsRecording() {
				span.SetAttributes(attribute.Int("http.response.status_code", wrapped.status))
				if wrapped.status >= 500 {
					span.SetStatus(codes.Error, http.StatusText(wrapped.status))
				}
			}
		})
	}
}
