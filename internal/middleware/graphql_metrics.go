package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"cms-graphql/internal/gqlrequest"
	"cms-graphql/internal/observability"
)

// unclassifiedErrorCode labels errors that carry no extensions.code, such as
// GraphQL validation failures.
const unclassifiedErrorCode = "unclassified"

// GraphQLMetricsMiddleware records request metrics for POSTed operations and
// makes the metric sets available to resolvers through the context. security
// may be nil.
func GraphQLMetricsMiddleware(metrics *observability.GraphQLMetrics, security *observability.SecurityMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// GraphiQL page loads are not operations.
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ctx := observability.ContextWithGraphQLMetrics(r.Context(), metrics)
			if security != nil {
				ctx = observability.ContextWithSecurityMetrics(ctx, security)
			}
			r = r.WithContext(ctx)

			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)
			start := time.Now()

			operationType := "unknown"
			analysis := gqlrequest.AnalysisFromContext(ctx)
			if analysis == nil {
				analysis = gqlrequest.AnalyzeRequest(r)
			}
			if strings.TrimSpace(analysis.OperationType) != "" {
				operationType = analysis.OperationType
				metrics.RecordQueryDepth(ctx, int64(analysis.SelectionDepth), operationType)
			}

			wrapped := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			codes := responseErrorCodes(wrapped.body.Bytes())
			if len(codes) == 0 && wrapped.statusCode >= 400 {
				codes = []string{"HTTP_" + http.StatusText(wrapped.statusCode)}
			}
			metrics.RecordRequest(ctx, time.Since(start), operationType, codes)
		})
	}
}

// metricsResponseWriter captures the status code and body.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	body       bytes.Buffer
}

func (w *metricsResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
		w.ResponseWriter.WriteHeader(statusCode)
	}
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	_, _ = w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// responseErrorCodes returns extensions.code for each entry of a GraphQL
// response's errors array. Bodies that are not GraphQL responses yield nil.
func responseErrorCodes(body []byte) []string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	var payload struct {
		Errors []struct {
			Extensions struct {
				Code string `json:"code"`
			} `json:"extensions"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}

	codes := make([]string, 0, len(payload.Errors))
	for _, e := range payload.Errors {
		code := e.Extensions.Code
		if code == "" {
			code = unclassifiedErrorCode
		}
		codes = append(codes, code)
	}
	return codes
}
