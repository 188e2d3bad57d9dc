// Package serverapp wires configuration, telemetry, the store backend and the
// HTTP stack into a runnable server.
package serverapp

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"cms-graphql/internal/config"
	"cms-graphql/internal/logging"
	"cms-graphql/internal/observability"
	"cms-graphql/internal/schemarefresh"
	"cms-graphql/internal/tlscert"
)

// App owns the server's runtime resources from Init to Shutdown.
type App struct {
	cfg               *config.Config
	logger            *logging.Logger
	loggerProvider    *observability.LoggerProvider
	effectiveDatabase string
	dsnPresent        bool

	// Set by Init.
	tel        telemetry
	backend    *backend
	manager    *schemarefresh.Manager
	handler    http.Handler
	serverAddr string
	srv        *http.Server
	tlsManager tlscert.Manager
	cleanup    cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
	shutdownErr  error
}

// New validates the database settings and returns an uninitialized App.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("config is required")
	case logger == nil:
		return nil, errors.New("logger is required")
	}

	effectiveDatabase, err := cfg.Database.EffectiveDatabaseName()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve effective database configuration: %w", err)
	}
	return &App{
		cfg:               cfg,
		logger:            logger,
		effectiveDatabase: effectiveDatabase,
		dsnPresent:        strings.TrimSpace(cfg.Database.ConnectionString) != "",
	}, nil
}

// AttachLoggerProvider hands the OTLP logger provider to the App so Shutdown
// flushes it last.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Manager returns the schema manager, or nil before Init.
func (a *App) Manager() *schemarefresh.Manager {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.manager
}

// Handler returns the root HTTP handler, or nil before Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
