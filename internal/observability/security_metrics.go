package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SecurityMetrics counts authentication outcomes at the HTTP edge and access
// control denials inside list operations.
type SecurityMetrics struct {
	authAttempts          metric.Int64Counter
	authFailures          metric.Int64Counter
	authSuccesses         metric.Int64Counter
	adminEndpointAccess   metric.Int64Counter
	unauthorizedAttempts  metric.Int64Counter
	tokenValidationErrors metric.Int64Counter
	accessDenied          metric.Int64Counter
}

// InitSecurityMetrics creates the security counters on the global meter provider.
func InitSecurityMetrics() (*SecurityMetrics, error) {
	meter := otel.Meter("cms-graphql/security")
	m := &SecurityMetrics{}

	counters := []struct {
		dst         *metric.Int64Counter
		name        string
		description string
	}{
		{&m.authAttempts, "security.auth.attempts.total", "Authentication attempts"},
		{&m.authFailures, "security.auth.failures.total", "Failed authentications by reason"},
		{&m.authSuccesses, "security.auth.successes.total", "Successful authentications"},
		{&m.adminEndpointAccess, "security.admin.access.total", "Requests to admin endpoints"},
		{&m.unauthorizedAttempts, "security.unauthorized.attempts.total", "Requests rejected before reaching a handler"},
		{&m.tokenValidationErrors, "security.token.validation_errors.total", "Bearer or session token validation errors"},
		{&m.accessDenied, "security.access.denied.total", "List operations refused by access control"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.description))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

// RecordAuthAttempt records an authentication attempt.
func (m *SecurityMetrics) RecordAuthAttempt(ctx context.Context, endpoint string) {
	m.authAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}

// RecordAuthFailure records a failed authentication attempt.
func (m *SecurityMetrics) RecordAuthFailure(ctx context.Context, endpoint, reason string) {
	m.authFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("reason", reason),
	))
}

// RecordAuthSuccess records a successful authentication. issuer is the OIDC
// issuer, or the session issuer for cookie/bearer sessions.
func (m *SecurityMetrics) RecordAuthSuccess(ctx context.Context, endpoint, issuer string) {
	m.authSuccesses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("issuer", issuer),
	))
}

// RecordAdminEndpointAccess records a call to an admin endpoint such as the
// lists reload.
func (m *SecurityMetrics) RecordAdminEndpointAccess(ctx context.Context, operation string, authenticated, success bool) {
	m.adminEndpointAccess.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("authenticated", authenticated),
		attribute.Bool("success", success),
	))
}

// RecordUnauthorizedAttempt records a request rejected by an auth middleware.
func (m *SecurityMetrics) RecordUnauthorizedAttempt(ctx context.Context, endpoint, reason string) {
	m.unauthorizedAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("reason", reason),
	))
}

// RecordTokenValidationError records a token that failed validation.
func (m *SecurityMetrics) RecordTokenValidationError(ctx context.Context, errorType string) {
	m.tokenValidationErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error_type", errorType),
	))
}

// RecordAccessDenied records a list operation that failed with KS_ACCESS_DENIED.
func (m *SecurityMetrics) RecordAccessDenied(ctx context.Context, listKey, operation string, authenticated bool) {
	m.accessDenied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("list", listKey),
		attribute.String("operation", operation),
		attribute.Bool("authenticated", authenticated),
	))
}

type securityMetricsContextKey struct{}

// ContextWithSecurityMetrics stores security metrics in ctx so resolvers can
// count access denials.
func ContextWithSecurityMetrics(ctx context.Context, metrics *SecurityMetrics) context.Context {
	return context.WithValue(ctx, securityMetricsContextKey{}, metrics)
}

// SecurityMetricsFromContext returns the metrics stored by
// ContextWithSecurityMetrics, or nil.
func SecurityMetricsFromContext(ctx context.Context) *SecurityMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(securityMetricsContextKey{}).(*SecurityMetrics)
	return metrics
}
