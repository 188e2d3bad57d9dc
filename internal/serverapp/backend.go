package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cms-graphql/internal/config"
	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/logging"
	"cms-graphql/internal/middleware"
	"cms-graphql/internal/observability"
	"cms-graphql/internal/schemarefresh"
	"cms-graphql/internal/sqlutil"
	"cms-graphql/internal/store"
	"cms-graphql/internal/store/memstore"
	"cms-graphql/internal/store/mongostore"
	"cms-graphql/internal/store/sqlstore"

	"github.com/XSAM/otelsql"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const maxConnectBackoff = 30 * time.Second

// backend is the long-lived connection behind the store clients. Every
// schema snapshot shares it: a *sql.DB for the SQL providers or a mongo
// client. Both are nil for the memory provider.
type backend struct {
	provider   string
	db         *sql.DB
	dbStatsReg interface{ Unregister() error }
	mongo      *mongo.Client
}

// initStore connects the backend and starts the schema manager that builds
// list snapshots on top of it.
func (a *App) initStore(ctx context.Context, cleanup *cleanupStack, refreshMetrics *observability.SchemaRefreshMetrics) (*backend, *schemarefresh.Manager, error) {
	db := a.cfg.Database
	a.logger.Info("connecting to store backend",
		slog.String("provider", db.Provider),
		slog.String("host", db.Host),
		slog.Int("port", db.EffectivePort()),
		slog.String("database_effective", a.effectiveDatabase),
		slog.Bool("dsn_present", a.dsnPresent),
	)

	b, err := openBackend(ctx, a.cfg, a.logger, a.effectiveDatabase)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	cleanup.push("database", func(context.Context) error {
		return b.close(a.logger)
	})

	opener, err := storeOpener(a.cfg, a.logger, b, a.effectiveDatabase)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	manager, stopRefresh, err := startSchemaManager(a.cfg, a.logger, opener, refreshMetrics)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize schema refresh manager: %w", err)
	}
	cleanup.push("schema manager", func(ctx context.Context) error {
		stopRefresh()
		return manager.Wait(ctx)
	})
	return b, manager, nil
}

// openBackend connects to the configured provider and waits until it
// answers a ping.
func openBackend(ctx context.Context, cfg *config.Config, logger *logging.Logger, effectiveDatabase string) (*backend, error) {
	b := &backend{provider: cfg.Database.Provider}
	switch {
	case b.provider == store.ProviderMemory:
		logger.Warn("using the in-memory store; items are lost on restart and on list reload")
		return b, nil
	case cfg.Database.UsesSQL():
		db, statsReg, err := connectDB(cfg, logger)
		if err != nil {
			return nil, err
		}
		b.db, b.dbStatsReg = db, statsReg
		applyPool(cfg.Database, db)
	case b.provider == store.ProviderMongoDB:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Database.DSN()))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		b.mongo = client
	default:
		return nil, fmt.Errorf("unsupported database provider %q", b.provider)
	}

	if err := waitForDatabase(ctx, cfg, logger, b.ping); err != nil {
		_ = b.close(logger)
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}
	logger.Info("connected to database",
		slog.String("provider", b.provider),
		slog.String("database_effective", effectiveDatabase),
		slog.Int("pool_max_open", cfg.Database.Pool.MaxOpen),
	)
	return b, nil
}

func applyPool(cfg config.DatabaseConfig, db *sql.DB) {
	db.SetMaxOpenConns(cfg.Pool.MaxOpen)
	db.SetMaxIdleConns(cfg.Pool.MaxIdle)
	db.SetConnMaxLifetime(cfg.Pool.MaxLifetime)
	if cfg.Provider == store.ProviderSQLite {
		// One writer, and every :memory: connection is a separate database.
		db.SetMaxOpenConns(1)
	}
}

func (b *backend) ping(ctx context.Context) error {
	switch {
	case b == nil:
		return nil
	case b.db != nil:
		return b.db.PingContext(ctx)
	case b.mongo != nil:
		return b.mongo.Ping(ctx, nil)
	}
	return nil
}

func (b *backend) close(logger *logging.Logger) error {
	if b.dbStatsReg != nil {
		if err := b.dbStatsReg.Unregister(); err != nil {
			logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
		}
	}
	switch {
	case b.db != nil:
		return b.db.Close()
	case b.mongo != nil:
		return b.mongo.Disconnect(context.Background())
	}
	return nil
}

// connectDB opens the SQL pool, through otelsql when any telemetry signal is
// on. The returned registration is nil unless DB stats metrics were set up.
func connectDB(cfg *config.Config, logger *logging.Logger) (*sql.DB, interface{ Unregister() error }, error) {
	if err := cfg.Database.RegisterTLS(); err != nil {
		return nil, nil, fmt.Errorf("failed to register database TLS config: %w", err)
	}
	driverName, err := sqlstore.DriverName(cfg.Database.Provider)
	if err != nil {
		return nil, nil, err
	}

	obs := cfg.Observability
	if !obs.MetricsEnabled && !obs.TracingEnabled {
		db, err := sql.Open(driverName, cfg.Database.DSN())
		return db, nil, err
	}

	dbSystem := sqlstore.DBSystem(cfg.Database.Provider)
	db, err := otelsql.Open(driverName, cfg.Database.DSN(), otelsqlOptions(cfg, logger)...)
	if err != nil {
		return nil, nil, err
	}

	var statsReg interface{ Unregister() error }
	if obs.MetricsEnabled {
		if statsReg, err = otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(dbSystem)); err != nil {
			logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
			statsReg = nil
		}
	}
	logger.Info("database instrumentation enabled",
		slog.String("driver", driverName),
		slog.Bool("metrics", obs.MetricsEnabled),
		slog.Bool("tracing", obs.TracingEnabled),
		slog.Bool("sqlcommenter", obs.SQLCommenterEnabled && obs.TracingEnabled),
	)
	return db, statsReg, nil
}

func otelsqlOptions(cfg *config.Config, logger *logging.Logger) []otelsql.Option {
	obs := cfg.Observability
	opts := []otelsql.Option{otelsql.WithAttributes(sqlstore.DBSystem(cfg.Database.Provider))}
	if !obs.TracingEnabled {
		if obs.SQLCommenterEnabled {
			logger.Warn("SQLCommenter requires tracing to be enabled - skipping SQLCommenter")
		}
		return opts
	}

	opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}))
	if obs.SQLCommenterEnabled {
		opts = append(opts, otelsql.WithSQLCommenter(true))
		logger.Info("SQLCommenter enabled - trace context will be injected into SQL queries")
	}
	return opts
}

// waitForDatabase pings until the backend answers or the connection timeout
// passes, doubling the retry interval up to 30s. A zero timeout pings once.
func waitForDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger, ping func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := cfg.Database.ConnectionTimeout
	if timeout == 0 {
		return ping(ctx)
	}
	interval := cfg.Database.ConnectionRetryInterval
	if interval <= 0 {
		interval = time.Second
	}

	deadline := time.Now().Add(timeout)
	for attempt := 1; ; attempt++ {
		err := ping(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}

		logger.Warn("database not ready, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		interval = min(interval*2, maxConnectBackoff)
	}
}

// storeOpener returns the opener the schema manager calls for every
// snapshot. Clients of one provider share the backend connection and are
// never closed individually.
func storeOpener(cfg *config.Config, logger *logging.Logger, b *backend, effectiveDatabase string) (schemarefresh.StoreOpener, error) {
	switch {
	case b.provider == store.ProviderMemory:
		return func(_ context.Context, s *dbschema.Schema) (store.Client, error) {
			return memstore.New(s), nil
		}, nil

	case b.db != nil:
		dialect, err := sqlutil.DialectFor(b.provider)
		if err != nil {
			return nil, err
		}
		// Tables are created for the startup lists only; lists added by a
		// reload need a migration.
		var (
			createOnce sync.Once
			createErr  error
		)
		return func(ctx context.Context, s *dbschema.Schema) (store.Client, error) {
			st := sqlstore.New(b.db, dialect, s, logger.Logger)
			if cfg.Database.CreateTables {
				createOnce.Do(func() {
					logger.Info("creating tables", slog.Int("models", len(s.Models)))
					createErr = st.CreateTables(ctx)
				})
				if createErr != nil {
					return nil, createErr
				}
			}
			return st, nil
		}, nil

	case b.mongo != nil:
		database := b.mongo.Database(effectiveDatabase)
		return func(ctx context.Context, s *dbschema.Schema) (store.Client, error) {
			st := mongostore.New(b.mongo, database, s, logger.Logger)
			if cfg.Database.CreateTables {
				if err := st.EnsureIndexes(ctx); err != nil {
					return nil, err
				}
			}
			return st, nil
		}, nil
	}
	return nil, fmt.Errorf("no store backend for provider %q", b.provider)
}

func startSchemaManager(cfg *config.Config, logger *logging.Logger, opener schemarefresh.StoreOpener, metrics *observability.SchemaRefreshMetrics) (*schemarefresh.Manager, context.CancelFunc, error) {
	naming := cfg.Naming
	manager, err := schemarefresh.NewManager(schemarefresh.Config{
		ListsPath:       cfg.Lists.File,
		OpenStore:       opener,
		MaxTotalResults: cfg.GraphQL.MaxTotalResults,
		Session:         middleware.SessionFromContext,
		Naming:          &naming,
		Logger:          logger,
		Metrics:         metrics,
		MinInterval:     cfg.Lists.RefreshMinInterval,
		MaxInterval:     cfg.Lists.RefreshMaxInterval,
		GraphiQL:        cfg.GraphQL.GraphiQL,
		Playground:      cfg.GraphQL.Playground,
	})
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)
	return manager, cancel, nil
}
