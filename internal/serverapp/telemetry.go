package serverapp

import (
	"context"
	"fmt"
	"log/slog"

	"cms-graphql/internal/config"
	"cms-graphql/internal/logging"
	"cms-graphql/internal/observability"
)

// telemetry groups the providers and instruments created before the store.
// Every field is nil when its signal is disabled.
type telemetry struct {
	meterProvider        *observability.MeterProvider
	tracerProvider       *observability.TracerProvider
	graphqlMetrics       *observability.GraphQLMetrics
	schemaRefreshMetrics *observability.SchemaRefreshMetrics
	securityMetrics      *observability.SecurityMetrics
}

// InitLogger builds the process logger and, when log export is enabled, the
// OTLP logger provider feeding it.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	obs := cfg.Observability
	loggerCfg := logging.Config{Level: obs.Logging.Level, Format: obs.Logging.Format}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)
	if !obs.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	otlp := obs.GetLogsConfig()
	logger.Info("initializing OpenTelemetry logging", exporterAttrs(cfg, otlp)...)
	provider, err := observability.InitLoggerProvider(observabilityConfig(cfg, otlp))
	if err != nil {
		return nil, nil, err
	}

	// Rebuild so records also flow to the exporter.
	loggerCfg.LoggerProvider = provider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)
	logger.Info("OpenTelemetry logging initialized")
	return logger, provider, nil
}

func serviceAttrs(cfg *config.Config) []any {
	return []any{
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
	}
}

func exporterAttrs(cfg *config.Config, otlp config.OTLPConfig) []any {
	return append(serviceAttrs(cfg),
		slog.String("otlp_endpoint", otlp.Endpoint),
		slog.String("otlp_protocol", otlp.Protocol),
		slog.Bool("insecure", otlp.Insecure),
	)
}

func observabilityConfig(cfg *config.Config, otlp config.OTLPConfig) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig: observability.OTLPExporterConfig{
			Endpoint:          otlp.Endpoint,
			Protocol:          otlp.Protocol,
			Insecure:          otlp.Insecure,
			TLSCertFile:       otlp.TLSCertFile,
			TLSClientCertFile: otlp.TLSClientCertFile,
			TLSClientKeyFile:  otlp.TLSClientKeyFile,
			Headers:           otlp.Headers,
			Timeout:           otlp.Timeout,
			Compression:       otlp.Compression,
			RetryEnabled:      otlp.RetryEnabled,
			RetryMaxAttempts:  otlp.RetryMaxAttempts,
		},
	}
}

// initMetrics installs the Prometheus-backed meter provider and creates the
// GraphQL, list refresh and security instruments on it.
func initMetrics(cfg *config.Config, logger *logging.Logger) (telemetry, error) {
	var tel telemetry
	if !cfg.Observability.MetricsEnabled {
		return tel, nil
	}
	logger.Info("initializing OpenTelemetry metrics", serviceAttrs(cfg)...)

	var err error
	if tel.meterProvider, err = observability.InitMeterProvider(observabilityConfig(cfg, config.OTLPConfig{})); err != nil {
		return tel, err
	}
	if tel.graphqlMetrics, err = observability.InitMetrics(logger.Logger); err != nil {
		return tel, fmt.Errorf("graphql metrics: %w", err)
	}
	if tel.schemaRefreshMetrics, err = observability.InitSchemaRefreshMetrics(logger.Logger); err != nil {
		return tel, fmt.Errorf("list refresh metrics: %w", err)
	}
	if tel.securityMetrics, err = observability.InitSecurityMetrics(); err != nil {
		return tel, fmt.Errorf("security metrics: %w", err)
	}
	logger.Info("OpenTelemetry metrics initialized")
	return tel, nil
}

func initTracing(cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}
	otlp := cfg.Observability.GetTracesConfig()
	logger.Info("initializing OpenTelemetry tracing",
		append(exporterAttrs(cfg, otlp), slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio))...)

	provider, err := observability.InitTracerProvider(observabilityConfig(cfg, otlp))
	if err != nil {
		return nil, err
	}
	logger.Info("OpenTelemetry tracing initialized")
	return provider, nil
}

// initTelemetry registers shutdown for each provider as soon as it exists.
func (a *App) initTelemetry(cleanup *cleanupStack) (telemetry, error) {
	if lp := a.loggerProvider; lp != nil {
		cleanup.push("logger provider", func(ctx context.Context) error {
			return lp.Shutdown(ctx, a.logger.Logger)
		})
	}

	tel, err := initMetrics(a.cfg, a.logger)
	if mp := tel.meterProvider; mp != nil {
		cleanup.push("meter provider", func(ctx context.Context) error {
			return mp.Shutdown(ctx, a.logger.Logger)
		})
	}
	if err != nil {
		return tel, fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}

	if tel.tracerProvider, err = initTracing(a.cfg, a.logger); err != nil {
		return tel, fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tp := tel.tracerProvider; tp != nil {
		cleanup.push("tracer provider", func(ctx context.Context) error {
			return tp.Shutdown(ctx, a.logger.Logger)
		})
	}
	return tel, nil
}
