package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cms-graphql/internal/logging"
	"cms-graphql/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type authContextKey struct{}

// AuthContext carries validated JWT claims. It is the session handed to list
// access rules and hooks.
type AuthContext struct {
	Subject  string
	Issuer   string
	Audience []string
	Claims   map[string]interface{}
}

func WithAuthContext(ctx context.Context, auth AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthFromContext returns the claims of an authenticated request.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	auth, ok := ctx.Value(authContextKey{}).(AuthContext)
	return auth, ok
}

// SessionFromContext returns the session of an authenticated request, or nil
// for anonymous ones. The untyped nil matters: access rules compare the
// session against nil.
func SessionFromContext(ctx context.Context) any {
	if ctx == nil {
		return nil
	}
	if auth, ok := AuthFromContext(ctx); ok {
		return auth
	}
	return nil
}

// tokenVerifier validates a raw bearer token and returns its claims.
type tokenVerifier func(ctx context.Context, token string) (map[string]interface{}, error)

// bearerAuth is shared by the OIDC and session middlewares: it runs verify on
// the bearer token of each request and stores the resulting AuthContext.
func bearerAuth(verify tokenVerifier, issuer string, optional bool, logger *logging.Logger, metrics *observability.SecurityMetrics) func(http.Handler) http.Handler {
	reject := func(w http.ResponseWriter, r *http.Request, reason string, cause error) {
		ctx, endpoint := r.Context(), r.URL.Path
		if metrics != nil {
			if cause == nil {
				metrics.RecordAuthFailure(ctx, endpoint, reason)
			} else {
				metrics.RecordAuthFailure(ctx, endpoint, "token_verification_failed")
				metrics.RecordTokenValidationError(ctx, "verification_failed")
			}
			metrics.RecordUnauthorizedAttempt(ctx, endpoint, reason)
		}
		message := "missing bearer token"
		if cause != nil {
			message = "invalid token"
		}
		if logger != nil {
			attrs := []any{slog.String("reason", reason), slog.String("endpoint", endpoint), slog.String("remote_addr", r.RemoteAddr)}
			if cause != nil {
				attrs = append(attrs, slog.String("error", cause.Error()))
			}
			logging.FromContext(ctx).Warn("authentication failed", attrs...)
		}
		writeUnauthorized(w, message)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" && optional {
				next.ServeHTTP(w, r)
				return
			}
			if metrics != nil {
				metrics.RecordAuthAttempt(ctx, r.URL.Path)
			}
			if token == "" {
				reject(w, r, "missing_token", nil)
				return
			}

			claims, err := verify(ctx, token)
			if err != nil {
				reject(w, r, "invalid_token", err)
				return
			}

			auth := AuthContext{Issuer: issuer, Audience: extractAudience(claims), Claims: claims}
			auth.Subject, _ = claims["sub"].(string)
			if metrics != nil {
				metrics.RecordAuthSuccess(ctx, r.URL.Path, issuer)
			}
			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(
					attribute.String("auth.subject", auth.Subject),
					attribute.String("auth.issuer", issuer),
					attribute.Bool("auth.authenticated", true),
				)
				if len(auth.Audience) > 0 {
					span.SetAttributes(attribute.StringSlice("auth.audience", auth.Audience))
				}
			}

			reqLogger := logging.FromContext(ctx).WithFields(slog.String("subject", auth.Subject))
			reqLogger.Debug("authentication successful", slog.String("issuer", issuer))
			ctx = logging.WithLogger(WithAuthContext(ctx, auth), reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// validateTimeClaims checks exp and nbf with skew tolerance. A non-positive
// skew skips the check.
func validateTimeClaims(claims map[string]interface{}, skew time.Duration) error {
	if skew <= 0 {
		return nil
	}
	now := time.Now()
	if exp, ok := numericDate(claims["exp"]); ok && now.After(exp.Add(skew)) {
		return errors.New("token expired")
	}
	if nbf, ok := numericDate(claims["nbf"]); ok && now.Add(skew).Before(nbf) {
		return errors.New("token not valid yet")
	}
	return nil
}

// numericDate reads a JWT NumericDate in any of the shapes JSON decoding or
// hand-built claims produce.
func numericDate(value interface{}) (time.Time, bool) {
	var seconds int64
	switch v := value.(type) {
	case float64:
		seconds = int64(v)
	case int64:
		seconds = v
	case int:
		seconds = int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		seconds = n
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		seconds = n
	default:
		return time.Time{}, false
	}
	return time.Unix(seconds, 0), true
}

// extractAudience normalizes the aud claim, which may be a string or a list.
func extractAudience(claims map[string]interface{}) []string {
	switch aud := claims["aud"].(type) {
	case string:
		return []string{aud}
	case []string:
		return aud
	case []interface{}:
		out := make([]string, 0, len(aud))
		for _, item := range aud {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
