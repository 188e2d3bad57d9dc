package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminRequest(t *testing.T, cfg AdminTokenAuthConfig, headers map[string]string) (*httptest.ResponseRecorder, *AuthContext) {
	t.Helper()
	mw, err := AdminTokenAuthMiddleware(cfg)
	require.NoError(t, err)

	var seen *AuthContext
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth, ok := AuthFromContext(r.Context()); ok {
			seen = &auth
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/reload-lists", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func TestAdminTokenAuthMiddleware_Rejections(t *testing.T) {
	cfg := AdminTokenAuthConfig{Token: "secret-token"}
	for name, headers := range map[string]map[string]string{
		"missing":       nil,
		"wrong header":  {defaultAdminTokenHeader: "wrong-token"},
		"wrong bearer":  {"Authorization": "Bearer wrong-token"},
		"prefix only":   {defaultAdminTokenHeader: "secret"},
		"basic scheme":  {"Authorization": "Basic secret-token"},
		"blank padding": {defaultAdminTokenHeader: "   "},
	} {
		t.Run(name, func(t *testing.T) {
			rec, seen := adminRequest(t, cfg, headers)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
			assert.Nil(t, seen)
		})
	}
}

func TestAdminTokenAuthMiddleware_Accepts(t *testing.T) {
	cfg := AdminTokenAuthConfig{Token: " secret-token "}

	rec, seen := adminRequest(t, cfg, map[string]string{defaultAdminTokenHeader: "secret-token"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, adminTokenSubject, seen.Subject)
	assert.Equal(t, adminTokenSubject, seen.Claims["auth_method"])

	rec, _ = adminRequest(t, cfg, map[string]string{"Authorization": "Bearer secret-token"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminTokenAuthMiddleware_CustomHeader(t *testing.T) {
	cfg := AdminTokenAuthConfig{Token: "secret-token", HeaderName: "X-Reload-Key"}

	rec, _ := adminRequest(t, cfg, map[string]string{defaultAdminTokenHeader: "secret-token"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = adminRequest(t, cfg, map[string]string{"X-Reload-Key": "secret-token"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminTokenAuthMiddleware_RequiresTokenConfig(t *testing.T) {
	_, err := AdminTokenAuthMiddleware(AdminTokenAuthConfig{Token: "  "})
	assert.EqualError(t, err, "admin auth token is required")
}
