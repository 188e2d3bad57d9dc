package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func installSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)
	oldProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(oldProvider)
	})
	return recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func TestGraphQLTracingMiddleware_RecordsOperationAttributes(t *testing.T) {
	recorder := installSpanRecorder(t)

	var innerSpan trace.SpanContext
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		innerSpan = trace.SpanContextFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := GraphQLRequestAnalysisMiddleware(nil)(GraphQLTracingMiddleware()(next))

	req := graphQLPost(`{"query":"query Posts { allPosts { id author { name } } }","operationName":"Posts"}`)
	req = req.WithContext(WithAuthContext(req.Context(), AuthContext{Subject: "alice"}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "graphql.execute", span.Name())
	assert.Equal(t, span.SpanContext().SpanID(), innerSpan.SpanID())

	attrs := spanAttrs(span)
	assert.Equal(t, "Posts", attrs["graphql.operation.name"].AsString())
	assert.Equal(t, "query", attrs["graphql.operation.type"].AsString())
	assert.Equal(t, []string{"allPosts"}, attrs["graphql.root_fields"].AsStringSlice())
	assert.Equal(t, int64(3), attrs["graphql.query.depth"].AsInt64())
	assert.Equal(t, "alice", attrs["auth.subject"].AsString())
	assert.Equal(t, int64(http.StatusOK), attrs["http.response.status_code"].AsInt64())
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestGraphQLTracingMiddleware_MarksServerErrors(t *testing.T) {
	recorder := installSpanRecorder(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "schema not ready", http.StatusServiceUnavailable)
	})
	handler := GraphQLRequestAnalysisMiddleware(nil)(GraphQLTracingMiddleware()(next))
	handler.ServeHTTP(httptest.NewRecorder(), graphQLPost(`{"query":"{ allPostsCount }"}`))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestGraphQLTracingMiddleware_SkipsRequestsWithoutQuery(t *testing.T) {
	recorder := installSpanRecorder(t)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	handler := GraphQLRequestAnalysisMiddleware(nil)(GraphQLTracingMiddleware()(next))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/graphql", nil))

	assert.True(t, called)
	assert.Empty(t, recorder.Ended())
}
