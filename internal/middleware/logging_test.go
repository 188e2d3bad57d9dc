package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-graphql/internal/logging"
)

func logRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		records = append(records, record)
	}
	return records
}

func TestLoggingMiddleware_PropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: "info", Format: "json", Output: &buf})

	var seenID string
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = logging.GetRequestID(r.Context())
		logging.FromContext(r.Context()).Info("resolving")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "req-42", seenID)
	assert.Equal(t, "req-42", rr.Header().Get(RequestIDHeader))

	records := logRecords(t, &buf)
	require.Len(t, records, 2)
	assert.Equal(t, "resolving", records[0]["msg"])
	assert.Equal(t, "req-42", records[0]["request_id"])
	assert.Equal(t, "request completed", records[1]["msg"])
	assert.Equal(t, float64(http.StatusCreated), records[1]["status"])
	assert.Equal(t, float64(2), records[1]["bytes"])
}

func TestLoggingMiddleware_ReplacesOversizedRequestID(t *testing.T) {
	logger := logging.NewLogger(logging.Config{Level: "error", Output: &bytes.Buffer{}})
	handler := LoggingMiddleware(logger)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLength+1))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Len(t, rr.Header().Get(RequestIDHeader), 36)
}

func TestCompletionLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, completionLevel(http.StatusBadGateway, "/graphql"))
	assert.Equal(t, slog.LevelWarn, completionLevel(http.StatusTooManyRequests, "/health"))
	assert.Equal(t, slog.LevelDebug, completionLevel(http.StatusOK, "/health"))
	assert.Equal(t, slog.LevelInfo, completionLevel(http.StatusOK, "/graphql"))
}

func TestStatusRecorder_FirstHeaderWins(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: rr, status: http.StatusOK}

	_, _ = rec.Write([]byte("hello"))
	rec.WriteHeader(http.StatusInternalServerError)
	_, _ = rec.Write([]byte("!"))

	assert.Equal(t, http.StatusOK, rec.status)
	assert.Equal(t, int64(6), rec.bytes)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Same(t, rr, rec.Unwrap())
}

func TestLoggingAndTracingShareStatus(t *testing.T) {
	recorder := installSpanRecorder(t)
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: "info", Format: "json", Output: &buf})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "store unavailable", http.StatusBadGateway)
	})
	handler := LoggingMiddleware(logger)(GraphQLRequestAnalysisMiddleware(nil)(GraphQLTracingMiddleware()(next)))
	handler.ServeHTTP(httptest.NewRecorder(), graphQLPost(`{"query":"{ allPostsCount }"}`))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, int64(http.StatusBadGateway), spanAttrs(spans[0])["http.response.status_code"].AsInt64())

	records := logRecords(t, &buf)
	require.NotEmpty(t, records)
	last := records[len(records)-1]
	assert.Equal(t, "request completed", last["msg"])
	assert.Equal(t, float64(http.StatusBadGateway), last["status"])
}
