package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"cms-graphql/internal/config"
	"cms-graphql/internal/logging"
	"cms-graphql/internal/schemarefresh"
	"cms-graphql/internal/tlscert"
)

func (a *App) initHTTP(cleanup *cleanupStack, tel telemetry, b *backend, manager *schemarefresh.Manager) error {
	graphqlHandler, err := buildGraphQLHandler(a.cfg, a.logger, manager, tel.graphqlMetrics, tel.securityMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize GraphQL handler: %w", err)
	}
	adminHandler, err := buildAdminHandler(a.cfg, a.logger, manager, tel.securityMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize admin handler: %w", err)
	}

	mux := buildRouter(a.cfg, a.logger, b.ping, graphqlHandler, adminHandler, tel.meterProvider)
	root := wrapHTTPHandler(a.cfg, a.logger, mux)

	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv, tlsManager, err := buildServer(a.cfg, a.logger, root, addr)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	cleanup.push("HTTP server", srv.Shutdown)
	if tlsManager != nil {
		cleanup.push("TLS manager", func(context.Context) error {
			return tlsManager.Shutdown()
		})
	}

	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.handler = root
	a.serverAddr = addr
	a.srv = srv
	a.tlsManager = tlsManager
	return nil
}

func tlsEnabled(cfg *config.Config) bool {
	return cfg.Server.TLSMode != "" && cfg.Server.TLSMode != "off"
}

// buildServer creates the HTTP server and, when TLS is on, the certificate
// manager backing its TLS config.
func buildServer(cfg *config.Config, logger *logging.Logger, handler http.Handler, serverAddr string) (*http.Server, tlscert.Manager, error) {
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if !tlsEnabled(cfg) {
		return srv, nil, nil
	}

	manager, err := tlscert.NewManager(tlscert.Config{
		Mode:        tlscert.Mode(cfg.Server.TLSMode),
		CertFile:    cfg.Server.TLSCertFile,
		KeyFile:     cfg.Server.TLSKeyFile,
		AutoCertDir: cfg.Server.TLSAutoCertDir,
		AutoHosts:   cfg.Server.TLSAutoCertHosts,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if srv.TLSConfig, err = manager.GetTLSConfig(); err != nil {
		_ = manager.Shutdown()
		return nil, nil, err
	}
	logger.Info("TLS enabled",
		slog.String("mode", cfg.Server.TLSMode),
		slog.String("cert_source", manager.Description()),
	)
	return srv, manager, nil
}

// startupAttrs summarizes the effective configuration for the start log.
func startupAttrs(cfg *config.Config, serverAddr string, useTLS bool) []any {
	protocol := "http"
	if useTLS {
		protocol = "https"
	}
	attrs := []any{
		slog.String("protocol", protocol),
		slog.String("address", serverAddr),
		slog.String("provider", cfg.Database.Provider),
		slog.String("lists_file", cfg.Lists.File),
		slog.String("graphql_endpoint", graphqlPath),
		slog.String("health_endpoint", healthPath),
		slog.Int("graphql_max_depth", cfg.Server.GraphQLMaxDepth),
		slog.Int("graphql_max_total_results", cfg.GraphQL.MaxTotalResults),
		slog.String("log_level", cfg.Observability.Logging.Level),
	}
	if cfg.Observability.MetricsEnabled {
		attrs = append(attrs, slog.String("metrics_endpoint", metricsPath))
	}
	if cfg.Server.RateLimitEnabled {
		attrs = append(attrs,
			slog.Float64("rate_limit_rps", cfg.Server.RateLimitRPS),
			slog.Int("rate_limit_burst", cfg.Server.RateLimitBurst),
		)
	}
	if useTLS {
		attrs = append(attrs, slog.String("tls_mode", cfg.Server.TLSMode))
	}
	return attrs
}

// startServer serves in the background. The returned channel receives the
// listener error, if any; a clean shutdown sends nothing.
func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	serverErrors := make(chan error, 1)
	useTLS := tlsEnabled(cfg)
	go func() {
		logger.Info("server starting", startupAttrs(cfg, serverAddr, useTLS)...)
		var err error
		if useTLS {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	return serverErrors
}
