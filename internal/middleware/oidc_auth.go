package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cms-graphql/internal/logging"
	"cms-graphql/internal/observability"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const defaultClockSkew = 2 * time.Minute

// OIDCAuthConfig controls OIDC/JWKS validation behavior.
type OIDCAuthConfig struct {
	Enabled       bool
	IssuerURL     string
	Audience      string
	ClockSkew     time.Duration
	CAFile        string
	SkipTLSVerify bool
	// Optional lets requests without a bearer token through anonymously.
	// Access rules of the lists then see a nil session. Invalid tokens are
	// still rejected.
	Optional bool
}

func (cfg OIDCAuthConfig) validate() error {
	if cfg.IssuerURL == "" || cfg.Audience == "" {
		return errors.New("oidc auth enabled but issuer/audience not configured")
	}
	issuer, err := url.Parse(cfg.IssuerURL)
	if err != nil {
		return fmt.Errorf("invalid oidc issuer url: %w", err)
	}
	if issuer.Scheme != "https" {
		return errors.New("oidc issuer url must use https")
	}
	return nil
}

// OIDCAuthMiddleware validates bearer tokens against the issuer's discovery
// document and JWKS. Discovery happens once, here, so a misconfigured issuer
// fails startup. Pass security metrics to record auth outcomes.
func OIDCAuthMiddleware(cfg OIDCAuthConfig, logger *logging.Logger, securityMetrics ...*observability.SecurityMetrics) (func(http.Handler) http.Handler, error) {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = defaultClockSkew
	}
	if cfg.SkipTLSVerify && logger != nil {
		logger.Warn("oidc tls verification is disabled; enable only for local development", "issuer", cfg.IssuerURL)
	}

	verify, err := oidcVerifier(cfg)
	if err != nil {
		return nil, err
	}
	var metrics *observability.SecurityMetrics
	if len(securityMetrics) > 0 {
		metrics = securityMetrics[0]
	}
	return bearerAuth(verify, cfg.IssuerURL, cfg.Optional, logger, metrics), nil
}

func oidcVerifier(cfg OIDCAuthConfig) (tokenVerifier, error) {
	client, err := newOIDCHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	// The provider keeps this context for JWKS refreshes, so it must carry
	// the custom client.
	providerCtx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
	provider, err := oidc.NewProvider(providerCtx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oidc provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.Audience})

	return func(ctx context.Context, token string) (map[string]interface{}, error) {
		idToken, err := verifier.Verify(ctx, token)
		if err != nil {
			return nil, err
		}
		claims := map[string]interface{}{}
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("invalid token claims: %w", err)
		}
		if err := validateTimeClaims(claims, cfg.ClockSkew); err != nil {
			return nil, err
		}
		return claims, nil
	}, nil
}

// newOIDCHTTPClient builds the client used for discovery and JWKS fetches.
// CAFile adds to the system roots rather than replacing them.
func newOIDCHTTPClient(cfg OIDCAuthConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.SkipTLSVerify,
	}
	if path := strings.TrimSpace(cfg.CAFile); path != "" {
		pemBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read oidc ca file: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pemBytes) {
			return nil, fmt.Errorf("oidc ca file %s contains no certificates", path)
		}
		tlsConfig.RootCAs = pool
	}
	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
		Timeout:   10 * time.Second,
	}, nil
}
