package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(method, origin string) *http.Request {
	req := httptest.NewRequest(method, "/graphql", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func preflight(origin, method string, headers ...string) *http.Request {
	req := corsRequest(http.MethodOptions, origin)
	req.Header.Set("Access-Control-Request-Method", method)
	if len(headers) > 0 {
		req.Header.Set("Access-Control-Request-Headers", strings.Join(headers, ","))
	}
	return req
}

func TestCORSMiddleware_Disabled(t *testing.T) {
	handler := CORSMiddleware(CORSConfig{Enabled: false})(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, corsRequest(http.MethodPost, "http://example.com"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	handler := CORSMiddleware(CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{" http://localhost:3000 "},
	})(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, corsRequest(http.MethodPost, "http://localhost:3000"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Values("Vary"), "Origin")
}

func TestCORSMiddleware_PreflightRequest(t *testing.T) {
	handler := CORSMiddleware(CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         3600,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for preflight")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, preflight("http://localhost:3000", http.MethodPost, "Content-Type"))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "content-type", strings.ToLower(rr.Header().Get("Access-Control-Allow-Headers")))
	assert.Equal(t, "3600", rr.Header().Get("Access-Control-Max-Age"))
}

func TestCORSMiddleware_DefaultHeadersAllowAdminToken(t *testing.T) {
	handler := CORSMiddleware(CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"http://localhost:3000"},
	})(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, preflight("http://localhost:3000", http.MethodPost, "X-Admin-Token"))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "x-admin-token", strings.ToLower(rr.Header().Get("Access-Control-Allow-Headers")))
}

func TestCORSMiddleware_DisallowedOrigin(t *testing.T) {
	handler := CORSMiddleware(CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"http://localhost:3000"},
	})(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, corsRequest(http.MethodPost, "http://malicious.com"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_DisallowedPreflight(t *testing.T) {
	handler := CORSMiddleware(CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"http://localhost:3000"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for disallowed preflight")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, preflight("http://malicious.com", http.MethodPost))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_Wildcard(t *testing.T) {
	handler := CORSMiddleware(CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"*"},
	})(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, corsRequest(http.MethodPost, "http://any-origin.com"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_WithCredentials(t *testing.T) {
	handler := CORSMiddleware(CORSConfig{
		Enabled:          true,
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
	})(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, corsRequest(http.MethodPost, "http://localhost:3000"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSMiddleware_ExposeHeaders(t *testing.T) {
	handler := CORSMiddleware(CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"http://localhost:3000"},
		ExposeHeaders:  []string{"X-Request-ID", "X-Custom-Header"},
	})(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, corsRequest(http.MethodPost, "http://localhost:3000"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "x-request-id, x-custom-header", strings.ToLower(rr.Header().Get("Access-Control-Expose-Headers")))
}

func TestCORSMiddleware_OriginAbsent(t *testing.T) {
	handler := CORSMiddleware(CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"*"},
	})(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, corsRequest(http.MethodPost, ""))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
