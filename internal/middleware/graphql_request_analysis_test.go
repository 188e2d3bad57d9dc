package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-graphql/internal/gqlrequest"
	"cms-graphql/internal/logging"
)

type analysisCapture struct {
	analysis *gqlrequest.Analysis
	meta     gqlrequest.ExecMeta
	metaOK   bool
	body     string
}

func runAnalysis(t *testing.T, req *http.Request) analysisCapture {
	t.Helper()
	var got analysisCapture
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.analysis = gqlrequest.AnalysisFromContext(r.Context())
		got.meta, got.metaOK = gqlrequest.ExecMetaFromContext(r.Context())
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got.body = string(body)
		logging.FromContext(r.Context()).Info("executing")
	})
	GraphQLRequestAnalysisMiddleware(nil)(next).ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func graphQLPost(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestGraphQLRequestAnalysisMiddleware_AnonymousMutation(t *testing.T) {
	payload := `{"query":"mutation AddUser { createUser(data: {}) { id } }","operationName":"AddUser","variables":{"x":1}}`
	got := runAnalysis(t, graphQLPost(payload))

	require.NotNil(t, got.analysis)
	require.True(t, got.metaOK)
	assert.Equal(t, "mutation", got.analysis.OperationType)
	assert.Equal(t, "mutation", got.meta.OperationType)
	assert.Equal(t, "AddUser", got.meta.OperationName)
	assert.NotEmpty(t, got.meta.OperationHash)
	assert.Empty(t, got.meta.Subject)
	assert.Equal(t, []string{"createUser"}, got.analysis.RootFields)
	assert.Equal(t, payload, got.body, "downstream handlers must still see the body")
}

func TestGraphQLRequestAnalysisMiddleware_CarriesSubject(t *testing.T) {
	req := graphQLPost(`{"query":"{ allPosts { id } }"}`)
	req = req.WithContext(WithAuthContext(req.Context(), AuthContext{Subject: "editor-7"}))

	got := runAnalysis(t, req)
	assert.Equal(t, "editor-7", got.meta.Subject)
	assert.Equal(t, "query", got.meta.OperationType)
}

func TestGraphQLRequestAnalysisMiddleware_EnrichesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: "info", Format: "json", Output: &buf})
	req := graphQLPost(`{"query":"query Feed { allPosts { id } allPostsCount }"}`)
	req = req.WithContext(logging.WithLogger(req.Context(), logger))

	runAnalysis(t, req)

	records := logRecords(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "Feed", records[0]["operation_name"])
	assert.Equal(t, "allPosts,allPostsCount", records[0]["root_fields"])
}

func TestGraphQLRequestAnalysisMiddleware_UnparseableQueryStillPasses(t *testing.T) {
	got := runAnalysis(t, graphQLPost(`{"query":"{ allPosts { "}`))

	require.NotNil(t, got.analysis)
	assert.Error(t, got.analysis.ParseError)
	assert.Empty(t, got.meta.OperationType)
}
