package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// option is one configuration key. The type of def picks the flag kind.
// Options with an empty usage are file and environment only.
type option struct {
	key   string
	def   any
	usage string
}

var options = []option{
	{"database.provider", "postgresql", "Backend: postgresql, mysql, sqlite, mongodb, memory"},
	{"database.dsn", "", "Complete driver DSN or URI"},
	{"database.dsn_file", "", "Path to file containing the DSN (use @- for stdin)"},
	{"database.host", "localhost", "Database host"},
	{"database.port", 0, "Database port (0 = provider default)"},
	{"database.user", "", "Database user"},
	{"database.password", "", "Database password"},
	{"database.password_file", "", "Path to file containing database password (use @- for stdin)"},
	{"database.password_prompt", false, "Prompt for database password securely"},
	{"database.database", "cms", "Database name, or file path for sqlite"},
	{"database.sslmode", "", "PostgreSQL sslmode"},
	{"database.tls.mode", "", "MySQL TLS mode (off, skip-verify, verify-ca, verify-full)"},
	{"database.tls.ca_file", "", "Path to CA certificate for server verification"},
	{"database.tls.cert_file", "", "Path to client certificate for mTLS"},
	{"database.tls.key_file", "", "Path to client private key for mTLS"},
	{"database.tls.server_name", "", "Override TLS server name for verification"},
	{"database.pool.max_open", 25, "Maximum open database connections"},
	{"database.pool.max_idle", 5, "Maximum idle connections in pool"},
	{"database.pool.max_lifetime", 5 * time.Minute, "Connection max lifetime"},
	{"database.create_tables", false, "Create list tables or indexes on startup"},
	{"database.connection_timeout", 60 * time.Second, "Max time to wait for the database on startup (0 = fail immediately)"},
	{"database.connection_retry_interval", 2 * time.Second, "Initial interval between connection retries"},

	{"lists.file", "lists.yaml", "Path to the list definitions file"},
	{"lists.refresh_min_interval", 30 * time.Second, "Minimum interval between list definition checks (negative disables)"},
	{"lists.refresh_max_interval", 5 * time.Minute, "Maximum interval between list definition checks"},

	{"graphql.max_total_results", 0, "Maximum rows one request may read (0 = unlimited)"},
	{"graphql.graphiql", false, "Serve GraphiQL on /graphql (dev only)"},
	{"graphql.playground", false, "Serve GraphQL Playground on /graphql (dev only)"},

	{"server.port", 8080, "HTTP server port"},
	{"server.graphql_max_depth", 10, "Maximum GraphQL query depth (0 = unlimited)"},
	{"server.read_timeout", 15 * time.Second, "HTTP server read timeout"},
	{"server.write_timeout", 30 * time.Second, "HTTP server write timeout"},
	{"server.idle_timeout", 60 * time.Second, "HTTP server idle timeout"},
	{"server.shutdown_timeout", 30 * time.Second, "Graceful shutdown timeout"},
	{"server.health_check_timeout", 2 * time.Second, "Health check timeout"},

	{"server.auth.oidc_enabled", false, "Enable OIDC/JWKS authentication"},
	{"server.auth.oidc_issuer_url", "", "OIDC issuer URL (for discovery and JWKS)"},
	{"server.auth.oidc_audience", "", "Expected JWT audience (client ID)"},
	{"server.auth.oidc_clock_skew", 2 * time.Minute, "Allowed JWT clock skew"},
	{"server.auth.oidc_ca_file", "", "CA bundle for the OIDC provider"},
	{"server.auth.oidc_skip_tls_verify", false, "Skip TLS verification for OIDC provider (dev only)"},
	{"server.auth.session_enabled", false, "Enable HS256 session tokens"},
	{"server.auth.session_secret", "", "Session token signing secret (32+ characters)"},
	{"server.auth.session_secret_file", "", "Path to file containing the session secret (use @- for stdin)"},
	{"server.auth.session_issuer", "cms-graphql", "Session token issuer"},
	{"server.auth.session_audience", "", "Session token audience"},
	{"server.auth.optional", false, "Allow anonymous requests without a bearer token"},

	{"server.admin.lists_reload_enabled", false, "Enable POST /admin/reload-lists"},
	{"server.admin.auth_token", "", "Shared secret required in the X-Admin-Token header"},
	{"server.admin.auth_token_file", "", "Path to file containing admin auth token (use @- for stdin)"},

	{"server.rate_limit_enabled", false, "Enable rate limiting"},
	{"server.rate_limit_rps", 0.0, "Rate limit requests per second"},
	{"server.rate_limit_burst", 0, "Rate limit burst size"},
	{"server.rate_limit_per_client", false, "Apply the rate limit per client address instead of globally"},

	{"server.cors_enabled", false, "Enable CORS"},
	{"server.cors_allowed_origins", []string{}, "Allowed CORS origins (comma-separated or repeated)"},
	{"server.cors_allowed_methods", []string{"GET", "POST", "OPTIONS"}, "Allowed CORS methods"},
	{"server.cors_allowed_headers", []string{"Accept", "Content-Type", "Authorization", "X-Admin-Token"}, "Allowed CORS headers"},
	{"server.cors_expose_headers", []string{}, "CORS headers exposed to the browser"},
	{"server.cors_allow_credentials", false, "Allow credentials in CORS requests"},
	{"server.cors_max_age", 86400, "CORS preflight cache duration (seconds)"},

	{"server.tls_mode", "off", "TLS mode: off, auto (self-signed), file"},
	{"server.tls_cert_file", "", "Path to TLS certificate file (file mode)"},
	{"server.tls_key_file", "", "Path to TLS private key file (file mode)"},
	{"server.tls_auto_cert_dir", ".tls", "Directory for auto-generated certificates"},
	{"server.tls_auto_cert_hosts", []string{}, "Host names and IPs covered by the auto-generated certificate"},

	{"observability.service_name", "cms-graphql", "Service name for observability"},
	{"observability.service_version", "", "Service version for observability"},
	{"observability.environment", "development", "Environment name (dev, staging, prod)"},
	{"observability.metrics_enabled", true, "Enable metrics collection"},
	{"observability.tracing_enabled", false, "Enable distributed tracing"},
	{"observability.trace_sample_ratio", 1.0, "Trace sampling ratio from 0.0 to 1.0"},
	{"observability.sqlcommenter_enabled", true, "Inject trace context into SQL queries"},
	{"observability.logging.level", "info", "Log level (debug, info, warn, error)"},
	{"observability.logging.format", "json", "Log format (json, text)"},
	{"observability.logging.exports_enabled", false, "Enable OTLP log export"},
	{"observability.otlp.endpoint", "localhost:4317", "OTLP endpoint for all signals"},
	{"observability.otlp.protocol", "grpc", "OTLP protocol (grpc, http/protobuf)"},
	{"observability.otlp.insecure", false, "Use insecure OTLP connection"},
	{"observability.otlp.tls_cert_file", "", "CA certificate for the OTLP endpoint"},
	{"observability.otlp.tls_client_cert_file", "", "Client certificate for OTLP mTLS"},
	{"observability.otlp.tls_client_key_file", "", "Client key for OTLP mTLS"},
	{"observability.otlp.timeout", 10 * time.Second, "OTLP export timeout"},
	{"observability.otlp.compression", "gzip", "OTLP compression (none, gzip)"},
	{"observability.otlp.retry_enabled", true, "Retry OTLP exports on transient errors"},
	{"observability.otlp.retry_max_attempts", 3, "Maximum OTLP retry attempts"},

	{"naming.plural_overrides", map[string]string{}, ""},
	{"naming.singular_overrides", map[string]string{}, ""},
}

// signalOptions override the shared OTLP settings for one signal. They get
// no viper default, so an unset section decodes to nil.
var signalOptions = []option{
	{"observability.traces.endpoint", "", "OTLP endpoint for traces only"},
	{"observability.traces.protocol", "", "OTLP protocol for traces"},
	{"observability.traces.insecure", false, "Use insecure connection for traces"},
	{"observability.logs.endpoint", "", "OTLP endpoint for logs only"},
	{"observability.logs.protocol", "", "OTLP protocol for logs"},
	{"observability.logs.insecure", false, "Use insecure connection for logs"},
}

// DefineFlags adds a flag for every command-line option to fs, keyed by its
// snake_case config path.
func DefineFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "Config file path")
	fs.Bool("version", false, "Print version and exit")

	for _, o := range append(options, signalOptions...) {
		if o.usage == "" {
			continue
		}
		switch def := o.def.(type) {
		case string:
			fs.String(o.key, def, o.usage)
		case int:
			fs.Int(o.key, def, o.usage)
		case bool:
			fs.Bool(o.key, def, o.usage)
		case float64:
			fs.Float64(o.key, def, o.usage)
		case time.Duration:
			fs.Duration(o.key, def, o.usage)
		case []string:
			fs.StringSlice(o.key, def, o.usage)
		default:
			panic(fmt.Sprintf("config: option %s has unsupported flag type %T", o.key, o.def))
		}
	}
}

func setDefaults(v *viper.Viper) {
	for _, o := range options {
		v.SetDefault(o.key, o.def)
	}
}
