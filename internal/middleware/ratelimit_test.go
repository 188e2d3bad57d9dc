package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{Enabled: false})(okHandler())

	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/graphql", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestRateLimitMiddleware_BurstExceeded(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{
		Enabled: true,
		RPS:     0.001,
		Burst:   2,
	})(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.JSONEq(t,
		`{"errors":[{"message":"Rate limit exceeded","extensions":{"code":"KS_LIMITS_EXCEEDED_ERROR"}}]}`,
		rr.Body.String())
}

func TestRateLimitMiddleware_PerClientBuckets(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{
		Enabled:   true,
		RPS:       0.001,
		Burst:     1,
		PerClient: true,
	})(okHandler())

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:5000"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5001"), "same host shares a bucket across ports")
	assert.Equal(t, http.StatusOK, send("10.0.0.2:5000"))
}

func TestLimiterSet_EvictsIdleClients(t *testing.T) {
	now := time.Unix(0, 0)
	set := newLimiterSet(rate.Limit(1), 1, func() time.Time { return now })

	first := set.get("a")
	require.True(t, first.Allow())

	now = now.Add(2 * clientIdleTTL)
	set.get("b")
	_, kept := set.entries["a"]
	assert.False(t, kept)

	again := set.get("a")
	assert.NotSame(t, first, again)
}
