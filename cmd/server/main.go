package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cms-graphql/internal/config"
	"cms-graphql/internal/serverapp"

	"github.com/spf13/pflag"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

var errInvalidConfig = errors.New("configuration validation failed")

func main() {
	if err := run(os.Args, os.Stdout); err != nil {
		slog.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	fs.SetOutput(stdout)
	config.DefineFlags(fs)
	switch err := fs.Parse(args[1:]); {
	case errors.Is(err, pflag.ErrHelp):
		return nil
	case err != nil:
		return err
	}

	if showVersion, _ := fs.GetBool("version"); showVersion {
		_, _ = fmt.Fprintf(stdout, "cms-graphql %s (%s)\n", Version, Commit)
		return nil
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}
	return serve(cfg)
}

// loadConfig resolves flags, env and file settings and reports validation
// findings through the default logger.
func loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadFlags(fs)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}

	result := cfg.Validate()
	for _, w := range result.Warnings {
		slog.Warn("configuration warning", slog.String("field", w.Field), slog.String("message", w.Message), slog.String("hint", w.Hint))
	}
	for _, e := range result.Errors {
		slog.Error("configuration error", slog.String("field", e.Field), slog.String("message", e.Message), slog.String("hint", e.Hint))
	}
	if result.HasErrors() {
		return nil, errInvalidConfig
	}
	return cfg, nil
}

// serve runs the server until SIGINT, SIGTERM or a listener failure, then
// shuts down within the configured timeout.
func serve(cfg *config.Config) error {
	logger, loggerProvider, err := serverapp.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	app, err := serverapp.New(cfg, logger)
	if err != nil {
		if loggerProvider != nil {
			_ = loggerProvider.Shutdown(context.Background(), logger.Logger)
		}
		return err
	}
	app.AttachLoggerProvider(loggerProvider)

	shutdown := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return app.Shutdown(ctx)
	}

	if err := app.Init(context.Background()); err != nil {
		return err
	}
	serverErrors, err := app.Start()
	if err != nil {
		_ = shutdown()
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	reason, waitErr := app.WaitForStop(stop, serverErrors)
	logger.Info("shutting down server", slog.String("reason", string(reason)))
	if err := errors.Join(waitErr, shutdown()); err != nil {
		return err
	}

	logger.Info("server stopped gracefully")
	return nil
}
