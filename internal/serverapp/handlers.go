package serverapp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cms-graphql/internal/config"
	"cms-graphql/internal/logging"
	"cms-graphql/internal/middleware"
	"cms-graphql/internal/observability"
	"cms-graphql/internal/schemarefresh"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	graphqlPath     = "/graphql"
	healthPath      = "/health"
	metricsPath     = "/metrics"
	listsReloadPath = "/admin/reload-lists"

	listsReloadTimeout = 15 * time.Second
)

// authMiddleware returns the bearer-token middleware of the enabled auth
// mode, or nil when neither OIDC nor session auth is on.
func authMiddleware(cfg *config.Config, logger *logging.Logger, securityMetrics *observability.SecurityMetrics) (func(http.Handler) http.Handler, string, error) {
	auth := cfg.Server.Auth
	switch {
	case auth.OIDCEnabled:
		mw, err := middleware.OIDCAuthMiddleware(middleware.OIDCAuthConfig{
			Enabled:       true,
			IssuerURL:     auth.OIDCIssuerURL,
			Audience:      auth.OIDCAudience,
			ClockSkew:     auth.OIDCClockSkew,
			CAFile:        auth.OIDCCAFile,
			SkipTLSVerify: auth.OIDCSkipTLSVerify,
			Optional:      auth.Optional,
		}, logger, securityMetrics)
		return mw, "oidc", err
	case auth.SessionEnabled:
		mw, err := middleware.SessionAuthMiddleware(middleware.SessionAuthConfig{
			Enabled:  true,
			Secret:   auth.SessionSecret,
			Issuer:   auth.SessionIssuer,
			Audience: auth.SessionAudience,
			Optional: auth.Optional,
		}, logger, securityMetrics)
		return mw, "session", err
	}
	return nil, "", nil
}

// buildGraphQLHandler wraps the schema manager as
//
//	logging -> auth -> analysis -> metrics -> depth limit -> tracing -> manager
//
// Metrics sit outside the depth limit so rejected operations are counted
// with their error code.
func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, manager *schemarefresh.Manager, graphqlMetrics *observability.GraphQLMetrics, securityMetrics *observability.SecurityMetrics) (http.Handler, error) {
	var handler http.Handler = middleware.GraphQLTracingMiddleware()(manager)
	handler = middleware.GraphQLDepthLimitMiddleware(cfg.Server.GraphQLMaxDepth)(handler)
	if graphqlMetrics != nil {
		handler = middleware.GraphQLMetricsMiddleware(graphqlMetrics, securityMetrics)(handler)
		logger.Info("GraphQL metrics middleware enabled")
	}
	handler = middleware.GraphQLRequestAnalysisMiddleware(manager)(handler)

	auth, mode, err := authMiddleware(cfg, logger, securityMetrics)
	if err != nil {
		return nil, err
	}
	if auth != nil {
		handler = auth(handler)
		logger.Info("auth middleware enabled",
			slog.String("mode", mode),
			slog.Bool("optional", cfg.Server.Auth.Optional),
		)
	}
	return middleware.LoggingMiddleware(logger)(handler), nil
}

// buildAdminHandler guards the lists reload endpoint with the admin token
// when one is set, and with the GraphQL auth mode otherwise.
func buildAdminHandler(cfg *config.Config, logger *logging.Logger, manager *schemarefresh.Manager, securityMetrics *observability.SecurityMetrics) (http.Handler, error) {
	var handler http.Handler = listsReloadHandler(manager, securityMetrics)

	if token := strings.TrimSpace(cfg.Server.Admin.AuthToken); token != "" {
		guard, err := middleware.AdminTokenAuthMiddleware(middleware.AdminTokenAuthConfig{Token: token}, securityMetrics)
		if err != nil {
			return nil, err
		}
		logger.Info("admin endpoints require the admin token")
		return middleware.LoggingMiddleware(logger)(guard(handler)), nil
	}

	auth, mode, err := authMiddleware(cfg, logger, securityMetrics)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		logger.Warn("admin endpoints are not authenticated - consider setting an admin token")
	} else {
		handler = auth(handler)
		logger.Info("admin endpoints require authentication", slog.String("mode", mode))
	}
	return middleware.LoggingMiddleware(logger)(handler), nil
}

func buildRouter(cfg *config.Config, logger *logging.Logger, ping func(context.Context) error, graphqlHandler http.Handler, adminHandler http.Handler, meterProvider *observability.MeterProvider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(graphqlPath, graphqlHandler)
	mux.HandleFunc(healthPath, healthHandler(ping, cfg.Server.HealthCheckTimeout))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, graphqlPath, http.StatusFound)
	})

	if cfg.Server.Admin.ListsReloadEnabled {
		mux.Handle(listsReloadPath, adminHandler)
		logger.Info("admin endpoint enabled", slog.String("path", listsReloadPath))
	}
	if meterProvider != nil && cfg.Observability.MetricsEnabled {
		mux.Handle(metricsPath, promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", metricsPath))
	}
	return mux
}

// wrapHTTPHandler applies the process-wide HTTP layers, rate limiting
// outermost.
func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	srv := cfg.Server
	if srv.CORSEnabled {
		handler = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          true,
			AllowedOrigins:   srv.CORSAllowedOrigins,
			AllowedMethods:   srv.CORSAllowedMethods,
			AllowedHeaders:   srv.CORSAllowedHeaders,
			ExposeHeaders:    srv.CORSExposeHeaders,
			AllowCredentials: srv.CORSAllowCredentials,
			MaxAge:           srv.CORSMaxAge,
		})(handler)
	}
	if srv.RateLimitEnabled {
		handler = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled:   true,
			RPS:       srv.RateLimitRPS,
			Burst:     srv.RateLimitBurst,
			PerClient: srv.RateLimitPerClient,
		})(handler)
	}
	return handler
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

// normalizeHTTPSpanRoute keeps span names low-cardinality.
func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", graphqlPath, healthPath, metricsPath, listsReloadPath:
		return rawPath
	}
	return "/*"
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, err := json.Marshal(body)
	if err != nil {
		return
	}
	_, _ = w.Write(data)
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// healthHandler reports whether the store backend answers. A nil ping, as
// for the memory provider, is always healthy.
func healthHandler(ping func(context.Context) error, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		if ping != nil {
			ctx := r.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if err := ping(ctx); err != nil {
				reqLogger.Error("health check failed",
					slog.String("error", err.Error()),
					slog.String("check", "database"),
				)
				// Driver errors can carry hosts and users; keep the body generic.
				writeJSON(w, http.StatusServiceUnavailable, healthStatus{Status: "unhealthy", Database: "failed"})
				return
			}
		}
		reqLogger.Debug("health check passed")
		writeJSON(w, http.StatusOK, healthStatus{Status: "healthy", Database: "ok"})
	}
}

type reloadStatus struct {
	Status      string `json:"status"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Message     string `json:"message,omitempty"`
}

func listsReloadHandler(manager *schemarefresh.Manager, securityMetrics *observability.SecurityMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}

		reqLogger := logging.FromContext(r.Context())
		authCtx, authenticated := middleware.AuthFromContext(r.Context())
		attrs := []any{
			slog.String("operation", "lists_reload"),
			slog.String("remote_addr", r.RemoteAddr),
			slog.Bool("authenticated", authenticated),
		}
		if authenticated {
			attrs = append(attrs,
				slog.String("authenticated_user", authCtx.Subject),
				slog.String("issuer", authCtx.Issuer),
			)
		}
		reqLogger.Info("admin endpoint accessed", attrs...)

		ctx, cancel := context.WithTimeout(r.Context(), listsReloadTimeout)
		defer cancel()
		err := manager.RefreshNowContext(ctx)
		if securityMetrics != nil {
			securityMetrics.RecordAdminEndpointAccess(r.Context(), "lists_reload", authenticated, err == nil)
		}
		if err != nil {
			reqLogger.Error("lists reload failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, reloadStatus{Status: "error", Message: "lists reload failed"})
			return
		}

		snapshot := manager.CurrentSnapshot()
		reqLogger.Info("lists reloaded",
			slog.Int("lists", len(snapshot.Lists.Keys)),
			slog.String("fingerprint", snapshot.Fingerprint),
		)
		writeJSON(w, http.StatusOK, reloadStatus{Status: "ok", Fingerprint: snapshot.Fingerprint})
	}
}
