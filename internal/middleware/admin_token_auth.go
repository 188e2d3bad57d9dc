package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"cms-graphql/internal/logging"
	"cms-graphql/internal/observability"
)

const (
	defaultAdminTokenHeader = "X-Admin-Token"
	adminTokenSubject       = "admin_token"
)

// AdminTokenAuthConfig controls shared-token authentication for admin endpoints.
type AdminTokenAuthConfig struct {
	Token      string
	HeaderName string
}

// adminSession is the AuthContext of a request holding the admin token.
var adminSession = AuthContext{
	Subject: adminTokenSubject,
	Issuer:  adminTokenSubject,
	Claims:  map[string]interface{}{"auth_method": adminTokenSubject},
}

// AdminTokenAuthMiddleware guards admin endpoints with a shared token read
// from HeaderName, or from an Authorization bearer token when the header is
// absent.
func AdminTokenAuthMiddleware(cfg AdminTokenAuthConfig, securityMetrics ...*observability.SecurityMetrics) (func(http.Handler) http.Handler, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("admin auth token is required")
	}
	expected := sha256.Sum256([]byte(token))
	header := strings.TrimSpace(cfg.HeaderName)
	if header == "" {
		header = defaultAdminTokenHeader
	}
	var metrics *observability.SecurityMetrics
	if len(securityMetrics) > 0 {
		metrics = securityMetrics[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, endpoint := r.Context(), r.URL.Path
			provided := strings.TrimSpace(r.Header.Get(header))
			if provided == "" {
				provided = bearerToken(r.Header.Get("Authorization"))
			}
			if metrics != nil {
				metrics.RecordAuthAttempt(ctx, endpoint)
			}

			// Comparing digests keeps the comparison constant time regardless
			// of the provided length.
			digest := sha256.Sum256([]byte(provided))
			if subtle.ConstantTimeCompare(digest[:], expected[:]) != 1 {
				reason := "invalid_token"
				if provided == "" {
					reason = "missing_token"
				}
				if metrics != nil {
					metrics.RecordAuthFailure(ctx, endpoint, reason)
					metrics.RecordUnauthorizedAttempt(ctx, endpoint, reason)
				}
				logging.FromContext(ctx).Warn("admin token rejected", slog.String("endpoint", endpoint), slog.String("reason", reason))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}

			if metrics != nil {
				metrics.RecordAuthSuccess(ctx, endpoint, adminTokenSubject)
			}
			next.ServeHTTP(w, r.WithContext(WithAuthContext(ctx, adminSession)))
		})
	}, nil
}
