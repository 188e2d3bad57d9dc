package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cms-graphql/internal/logging"
	"cms-graphql/internal/observability"

	"github.com/golang-jwt/jwt/v5"
)

const sessionIssuer = "cms-graphql"

// SessionAuthConfig controls HS256 session tokens signed with a shared
// secret, for deployments without an OIDC provider.
type SessionAuthConfig struct {
	Enabled   bool
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	// Optional lets requests without a bearer token through anonymously.
	Optional bool
}

// SessionAuthMiddleware validates HS256 session tokens when enabled.
func SessionAuthMiddleware(cfg SessionAuthConfig, logger *logging.Logger, securityMetrics ...*observability.SecurityMetrics) (func(http.Handler) http.Handler, error) {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	verify, err := sessionVerifier(cfg)
	if err != nil {
		return nil, err
	}
	var metrics *observability.SecurityMetrics
	if len(securityMetrics) > 0 {
		metrics = securityMetrics[0]
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = sessionIssuer
	}
	return bearerAuth(verify, issuer, cfg.Optional, logger, metrics), nil
}

func sessionVerifier(cfg SessionAuthConfig) (tokenVerifier, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if len(secret) < 32 {
		return nil, errors.New("session auth secret must be at least 32 characters")
	}
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = sessionIssuer
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithLeeway(cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)
	key := []byte(secret)

	return func(_ context.Context, token string) (map[string]interface{}, error) {
		claims := jwt.MapClaims{}
		if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}); err != nil {
			return nil, err
		}
		if sub, _ := claims.GetSubject(); sub == "" {
			return nil, errors.New("token has no subject")
		}
		return claims, nil
	}, nil
}

// SignSessionToken issues an HS256 session token for subject, valid for ttl.
// Extra claims are copied into the token.
func SignSessionToken(cfg SessionAuthConfig, subject string, ttl time.Duration, extra map[string]interface{}) (string, error) {
	if len(strings.TrimSpace(cfg.Secret)) < 32 {
		return "", errors.New("session auth secret must be at least 32 characters")
	}
	if subject == "" {
		return "", errors.New("session subject is required")
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = sessionIssuer
	}
	now := time.Now()
	claims := jwt.MapClaims{}
	for k, v := range extra {
		claims[k] = v
	}
	claims["sub"] = subject
	claims["iss"] = issuer
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()
	if cfg.Audience != "" {
		claims["aud"] = cfg.Audience
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.TrimSpace(cfg.Secret)))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}
