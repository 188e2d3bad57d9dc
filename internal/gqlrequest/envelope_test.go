package gqlrequest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope_GET(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/graphql?query=query%20%7B%20allUsers%20%7B%20id%20%7D%20%7D&operationName=GetUsers", nil)

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, "query { allUsers { id } }", env.Query)
	assert.Equal(t, "GetUsers", env.OperationName)
	assert.Equal(t, len(env.Query), env.DocumentSizeBytes)
}

func TestDecodeEnvelope_PostApplicationGraphQL_RewindsBody(t *testing.T) {
	body := "query { allUsers { id } }"
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/graphql")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, body, env.Query)

	rewound, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(rewound))
}

func TestDecodeEnvelope_PostJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"query GetUsers($limit: Int) { allUsers(first: $limit) { id } }","operationName":"GetUsers","variables":{"limit":5}}`))
	req.Header.Set("Content-Type", "application/json")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, "GetUsers", env.OperationName)
	assert.JSONEq(t, `{"limit":5}`, string(env.VariablesRaw))
	assert.Equal(t, len(env.Query), env.DocumentSizeBytes)
}

func TestDecodeEnvelope_PostMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":`))
	req.Header.Set("Content-Type", "application/json")

	_, err := DecodeEnvelope(req)
	assert.Error(t, err)
}

func TestDecodeEnvelope_GETVariables(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, `/graphql?query=query(%24id%3A+ID!)+%7B+User(where%3A+%7Bid%3A+%24id%7D)+%7B+name+%7D+%7D&variables=%7B%22id%22%3A%221%22%7D`, nil)

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1"}`, string(env.VariablesRaw))
	assert.Equal(t, len(env.Query), env.DocumentSizeBytes)
}

func TestDecodeEnvelope_PostForm(t *testing.T) {
	form := url.Values{
		"query":         {"mutation Create { createPost(data: {title: \"x\"}) { id } }"},
		"operationName": {"Create"},
		"variables":     {"null"},
	}
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, "Create", env.OperationName)
	assert.Contains(t, env.Query, "createPost")
	assert.Nil(t, env.VariablesRaw)
}

func TestDecodeEnvelope_BodyTooLarge_StillRewinds(t *testing.T) {
	body := `{"query":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	_, err := DecodeEnvelope(req)
	require.ErrorIs(t, err, ErrBodyTooLarge)

	rewound, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Len(t, rewound, len(body))
}
