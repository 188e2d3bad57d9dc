package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"cms-graphql/internal/naming"
	"cms-graphql/internal/store"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) fail(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) warn(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// Validate checks the configuration. It may normalise Database.Database to
// the database named by the DSN.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Database.validate(result)
	c.Lists.validate(result)
	c.GraphQL.validate(result)
	c.Server.validate(result)
	c.Observability.validate(result)
	validateNamingConfig(result, c.Naming)

	if c.Database.Provider == store.ProviderMemory && c.Lists.RefreshMinInterval >= 0 {
		c.warnMemoryReload(result)
	}
	return result
}

func (c *Config) warnMemoryReload(result *ValidationResult) {
	result.warn("database.provider",
		"the memory provider starts empty on every list reload",
		"set lists.refresh_min_interval to a negative value to keep data while developing")
}

var validProviders = map[string]bool{
	store.ProviderPostgreSQL: true,
	store.ProviderMySQL:      true,
	store.ProviderSQLite:     true,
	store.ProviderMongoDB:    true,
	store.ProviderMemory:     true,
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	if !validProviders[d.Provider] {
		result.fail("database.provider", fmt.Sprintf("unknown provider %q", d.Provider),
			"valid values are: postgresql, mysql, sqlite, mongodb, memory")
		return
	}
	if d.Provider == store.ProviderMemory {
		return
	}

	if d.ConnectionString == "" && d.Provider != store.ProviderSQLite {
		if strings.TrimSpace(d.Host) == "" {
			result.fail("database.host", "host is required when dsn is not set", "")
		}
		if port := d.EffectivePort(); port < 1 || port > 65535 {
			result.fail("database.port", fmt.Sprintf("port %d is out of valid range (1-65535)", port), "")
		}
	}

	if d.Provider == store.ProviderMySQL {
		d.TLS.validate(result)
	} else if d.TLS.Mode != "" {
		result.warn("database.tls.mode", "tls settings only apply to mysql",
			"use database.sslmode for postgresql or TLS options in the mongodb URI")
	}

	if d.Pool.MaxOpen < 0 {
		result.fail("database.pool.max_open", "max_open cannot be negative", "")
	}
	if d.Pool.MaxIdle < 0 {
		result.fail("database.pool.max_idle", "max_idle cannot be negative", "")
	}
	if d.Pool.MaxIdle > d.Pool.MaxOpen && d.Pool.MaxOpen > 0 {
		result.warn("database.pool.max_idle", "max_idle is greater than max_open",
			"idle connections will be limited to max_open")
	}
	if d.Provider == store.ProviderSQLite && d.Pool.MaxOpen != 1 {
		result.warn("database.pool.max_open", "sqlite allows a single writer",
			"writes are serialised regardless; set max_open to 1 to avoid busy errors")
	}

	if d.ConnectionRetryInterval < 0 {
		result.fail("database.connection_retry_interval", "connection_retry_interval cannot be negative", "")
	}
	if d.ConnectionTimeout < 0 {
		result.fail("database.connection_timeout", "connection_timeout cannot be negative", "")
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval == 0 {
		result.fail("database.connection_retry_interval",
			"connection_retry_interval must be greater than 0 when connection_timeout is set",
			"set a retry interval such as 2s, or set connection_timeout to 0 to disable retries")
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval > d.ConnectionTimeout {
		result.warn("database.connection_retry_interval",
			"connection_retry_interval is greater than connection_timeout",
			"only one connection attempt will be made")
	}

	name, err := d.EffectiveDatabaseName()
	if err != nil {
		field := "database.database"
		if strings.HasPrefix(err.Error(), "database.dsn") {
			field = "database.dsn"
		}
		result.fail(field, err.Error(), "either remove database.database or set it to match the DSN")
		return
	}
	if name == "" {
		result.fail("database.database", "no database configured",
			"set database.database or include the database in database.dsn")
		return
	}
	d.Database = name
}

func (t *DatabaseTLSConfig) validate(result *ValidationResult) {
	validModes := map[string]bool{"": true, "off": true, "skip-verify": true, "verify-ca": true, "verify-full": true}
	if !validModes[t.Mode] {
		result.fail("database.tls.mode", fmt.Sprintf("invalid TLS mode %q", t.Mode),
			"valid values are: off, skip-verify, verify-ca, verify-full")
	}
	if (t.Mode == "verify-ca" || t.Mode == "verify-full") && t.CAFile == "" {
		result.fail("database.tls.ca_file", "CA file is required for verify-ca and verify-full modes", "")
	}
	if (t.CertFile == "") != (t.KeyFile == "") {
		result.fail("database.tls.cert_file",
			"both cert_file and key_file must be specified for client certificate authentication",
			"provide both cert_file and key_file, or neither")
	}
	if t.Mode == "skip-verify" {
		result.warn("database.tls.mode", "skip-verify mode does not verify server certificates",
			"use verify-ca or verify-full in production")
	}
}

func (l *ListsConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(l.File) == "" {
		result.fail("lists.file", "a list definitions file is required", "")
	}
	if l.RefreshMinInterval >= 0 && l.RefreshMaxInterval > 0 && l.RefreshMaxInterval < l.RefreshMinInterval {
		result.warn("lists.refresh_max_interval", "refresh_max_interval is below refresh_min_interval",
			"the minimum interval is used for every check")
	}
}

func (g *GraphQLConfig) validate(result *ValidationResult) {
	if g.MaxTotalResults < 0 {
		result.fail("graphql.max_total_results", "max_total_results cannot be negative", "use 0 for no limit")
	}
	if g.GraphiQL && g.Playground {
		result.warn("graphql.playground", "both graphiql and playground are enabled", "playground takes precedence")
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.fail("server.port", fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port), "")
	}
	if s.GraphQLMaxDepth < 0 {
		result.fail("server.graphql_max_depth", "graphql_max_depth cannot be negative", "")
	}

	if s.RateLimitEnabled {
		if s.RateLimitRPS <= 0 {
			result.fail("server.rate_limit_rps", "rate_limit_rps must be greater than 0 when rate limiting is enabled", "")
		}
		if s.RateLimitBurst <= 0 {
			result.fail("server.rate_limit_burst", "rate_limit_burst must be greater than 0 when rate limiting is enabled", "")
		}
	} else if s.RateLimitRPS > 0 || s.RateLimitBurst > 0 {
		result.warn("server.rate_limit_enabled", "rate limit values are set but rate limiting is disabled",
			"enable server.rate_limit_enabled to apply rate limits")
	}

	s.validateCORS(result)
	s.Auth.validate(result)

	if s.Admin.ListsReloadEnabled && strings.TrimSpace(s.Admin.AuthToken) == "" {
		result.fail("server.admin.auth_token", "an admin token is required when lists_reload_enabled is true",
			"set server.admin.auth_token or server.admin.auth_token_file")
	}

	validTLSModes := map[string]bool{"": true, "off": true, "auto": true, "file": true}
	if !validTLSModes[s.TLSMode] {
		result.fail("server.tls_mode", fmt.Sprintf("invalid TLS mode %q", s.TLSMode), "valid values are: off, auto, file")
	}
	if s.TLSMode == "file" {
		if s.TLSCertFile == "" {
			result.fail("server.tls_cert_file", "TLS cert file required when tls_mode is 'file'", "")
		}
		if s.TLSKeyFile == "" {
			result.fail("server.tls_key_file", "TLS key file required when tls_mode is 'file'", "")
		}
	}
}

func (s *ServerConfig) validateCORS(result *ValidationResult) {
	if !s.CORSEnabled {
		return
	}
	if len(s.CORSAllowedOrigins) == 0 {
		result.fail("server.cors_allowed_origins", "CORS enabled but no allowed origins configured",
			"set cors_allowed_origins or disable CORS")
	}
	hasWildcard := false
	for _, origin := range s.CORSAllowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			hasWildcard = true
			break
		}
	}
	if hasWildcard && s.CORSAllowCredentials {
		result.fail("server.cors_allowed_origins", "wildcard origin (*) cannot be used with credentials",
			"use specific origins with credentials, or wildcard without credentials")
	}
	if hasWildcard {
		result.warn("server.cors_allowed_origins", "CORS wildcard origin enabled",
			"use specific origins in production for better security")
	}
}

func (a *AuthConfig) validate(result *ValidationResult) {
	if a.OIDCEnabled && a.SessionEnabled {
		result.fail("server.auth", "oidc_enabled and session_enabled are mutually exclusive",
			"pick one token issuer")
	}
	if a.OIDCEnabled {
		if a.OIDCIssuerURL == "" {
			result.fail("server.auth.oidc_issuer_url", "issuer URL is required when OIDC is enabled", "")
		} else if u, err := url.Parse(a.OIDCIssuerURL); err != nil || u.Scheme != "https" {
			result.fail("server.auth.oidc_issuer_url", "issuer URL must be an https URL", "")
		}
		if a.OIDCAudience == "" {
			result.fail("server.auth.oidc_audience", "audience is required when OIDC is enabled", "")
		}
		if a.OIDCSkipTLSVerify {
			result.warn("server.auth.oidc_skip_tls_verify", "OIDC provider certificates are not verified",
				"use oidc_ca_file to trust a private CA instead")
		}
	}
	if a.SessionEnabled && len(strings.TrimSpace(a.SessionSecret)) < 32 {
		result.fail("server.auth.session_secret", "session secret must be at least 32 characters",
			"set server.auth.session_secret or server.auth.session_secret_file")
	}
	if a.Optional && !a.OIDCEnabled && !a.SessionEnabled {
		result.warn("server.auth.optional", "optional has no effect without an authentication method", "")
	}
	if !a.OIDCEnabled && !a.SessionEnabled {
		result.warn("server.auth", "authentication is disabled",
			"every request reaches the lists without a session")
	}
}

var pascalCaseTypePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	for singular, plural := range cfg.PluralOverrides {
		if !pascalCaseTypePattern.MatchString(strings.TrimSpace(singular)) {
			result.fail("naming.plural_overrides", fmt.Sprintf("list key %q must be PascalCase", singular), "")
			continue
		}
		if !pascalCaseTypePattern.MatchString(strings.TrimSpace(plural)) {
			result.fail("naming.plural_overrides", fmt.Sprintf("plural %q of %q must be PascalCase", plural, singular), "")
		}
	}
	for plural, singular := range cfg.SingularOverrides {
		if strings.TrimSpace(plural) == "" || strings.TrimSpace(singular) == "" {
			result.fail("naming.singular_overrides", "overrides cannot be empty", "")
		}
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.fail("observability.logging.level", fmt.Sprintf("invalid log level %q", o.Logging.Level),
			"valid values are: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.fail("observability.logging.format", fmt.Sprintf("invalid log format %q", o.Logging.Format),
			"valid values are: json, text")
	}
	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.fail("observability.trace_sample_ratio", "trace_sample_ratio must be between 0 and 1", "")
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
	if o.Metrics != nil {
		o.Metrics.validate("observability.metrics", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.fail(prefix+".protocol", fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			"valid values are: grpc, http/protobuf")
	}
	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.fail(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
			"use host:port or a full URL")
	}
	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.fail(prefix+".compression", fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			"valid values are: none, gzip")
	}
	if o.RetryMaxAttempts < 0 {
		result.fail(prefix+".retry_max_attempts", "retry_max_attempts cannot be negative", "")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
