package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSessionSecret = "0123456789abcdef0123456789abcdef"

func sessionRequest(t *testing.T, mw func(http.Handler) http.Handler, token string) (*httptest.ResponseRecorder, any) {
	t.Helper()
	var session any
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, session
}

func TestSessionAuthMiddleware_ValidToken(t *testing.T) {
	cfg := SessionAuthConfig{Enabled: true, Secret: testSessionSecret, Audience: "cms"}
	mw, err := SessionAuthMiddleware(cfg, nil)
	require.NoError(t, err)

	token, err := SignSessionToken(cfg, "user-1", time.Hour, map[string]interface{}{"role": "editor"})
	require.NoError(t, err)

	rec, session := sessionRequest(t, mw, token)
	assert.Equal(t, http.StatusOK, rec.Code)
	auth, ok := session.(AuthContext)
	require.True(t, ok)
	assert.Equal(t, "user-1", auth.Subject)
	assert.Equal(t, "cms-graphql", auth.Issuer)
	assert.Equal(t, []string{"cms"}, auth.Audience)
	assert.Equal(t, "editor", auth.Claims["role"])
}

func TestSessionAuthMiddleware_Rejections(t *testing.T) {
	cfg := SessionAuthConfig{Enabled: true, Secret: testSessionSecret}
	mw, err := SessionAuthMiddleware(cfg, nil)
	require.NoError(t, err)

	otherSecret, err := SignSessionToken(SessionAuthConfig{Secret: "ffffffffffffffffffffffffffffffff"}, "user-1", time.Hour, nil)
	require.NoError(t, err)
	expired, err := SignSessionToken(cfg, "user-1", -time.Hour, nil)
	require.NoError(t, err)
	wrongIssuer, err := SignSessionToken(SessionAuthConfig{Secret: testSessionSecret, Issuer: "elsewhere"}, "user-1", time.Hour, nil)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "cms-graphql",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSessionSecret))
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "cms-graphql",
		"sub": "user-1",
	}).SignedString([]byte(testSessionSecret))
	require.NoError(t, err)

	tests := map[string]string{
		"missing":      "",
		"garbage":      "not-a-token",
		"other secret": otherSecret,
		"expired":      expired,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
		"no expiry":    noExpiry,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			rec, session := sessionRequest(t, mw, token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Nil(t, session)
		})
	}
}

func TestSessionAuthMiddleware_Optional(t *testing.T) {
	cfg := SessionAuthConfig{Enabled: true, Secret: testSessionSecret, Optional: true}
	mw, err := SessionAuthMiddleware(cfg, nil)
	require.NoError(t, err)

	rec, session := sessionRequest(t, mw, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, session)

	// A bad token is still rejected.
	rec, _ = sessionRequest(t, mw, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionAuthMiddleware_Config(t *testing.T) {
	mw, err := SessionAuthMiddleware(SessionAuthConfig{}, nil)
	require.NoError(t, err)
	rec, session := sessionRequest(t, mw, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, session)

	_, err = SessionAuthMiddleware(SessionAuthConfig{Enabled: true, Secret: "short"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")

	_, err = SignSessionToken(SessionAuthConfig{Secret: testSessionSecret}, "", time.Hour, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subject is required")
}
