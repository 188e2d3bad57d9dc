// Package containers starts throwaway database servers for integration
// tests. One server per engine is shared by a test binary; every test gets
// its own database on it, dropped on cleanup.
package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"cms-graphql/internal/sqlutil"
)

// TestDB is a database created for one test.
type TestDB struct {
	DB           *sql.DB
	DatabaseName string
	// DSN connects to the test database.
	DSN string

	admin   *sql.DB
	dialect sqlutil.Dialect
}

type server struct {
	once sync.Once
	dsn  func(database string) string
	err  error
}

var (
	postgresServer server
	mysqlServer    server
	mongoServer    struct {
		once sync.Once
		uri  string
		err  error
	}
)

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("container tests are skipped in -short mode")
	}
}

func (s *server) start(t *testing.T, run func(ctx context.Context) (func(string) string, error)) func(string) string {
	t.Helper()
	s.once.Do(func() {
		s.dsn, s.err = run(context.Background())
	})
	if s.err != nil {
		t.Skipf("database container unavailable: %v", s.err)
	}
	return s.dsn
}

// NewPostgres creates an empty PostgreSQL database.
func NewPostgres(t *testing.T) *TestDB {
	t.Helper()
	skipShort(t)
	dsn := postgresServer.start(t, func(ctx context.Context) (func(string) string, error) {
		container, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("postgres"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to start PostgreSQL container: %w", err)
		}
		host, err := container.Host(ctx)
		if err != nil {
			return nil, err
		}
		port, err := container.MappedPort(ctx, "5432/tcp")
		if err != nil {
			return nil, err
		}
		// Container is not kept: ryuk removes it when the test binary exits.
		return func(database string) string {
			return fmt.Sprintf("postgres://test:test@%s:%s/%s?sslmode=disable", host, port.Port(), database)
		}, nil
	})
	return newTestDB(t, "pgx", dsn, sqlutil.PostgreSQL, "postgres")
}

// NewMySQL creates an empty MySQL database.
func NewMySQL(t *testing.T) *TestDB {
	t.Helper()
	skipShort(t)
	dsn := mysqlServer.start(t, func(ctx context.Context) (func(string) string, error) {
		container, err := testcontainers.Run(ctx, "mysql:8.4",
			testcontainers.WithExposedPorts("3306/tcp"),
			testcontainers.WithEnv(map[string]string{"MYSQL_ROOT_PASSWORD": "test"}),
			testcontainers.WithWaitStrategy(
				wait.ForLog("port: 3306  MySQL Community Server").
					WithStartupTimeout(120*time.Second),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to start MySQL container: %w", err)
		}
		host, err := container.Host(ctx)
		if err != nil {
			return nil, err
		}
		port, err := container.MappedPort(ctx, "3306/tcp")
		if err != nil {
			return nil, err
		}
		return func(database string) string {
			return fmt.Sprintf("root:test@tcp(%s:%s)/%s?parseTime=true", host, port.Port(), database)
		}, nil
	})
	return newTestDB(t, "mysql", dsn, sqlutil.MySQL, "mysql")
}

// NewMongo returns the URI of a MongoDB server and a fresh database name.
func NewMongo(t *testing.T) (uri, database string) {
	t.Helper()
	skipShort(t)
	mongoServer.once.Do(func() {
		ctx := context.Background()
		container, err := testcontainers.Run(ctx, "mongo:7",
			testcontainers.WithExposedPorts("27017/tcp"),
			testcontainers.WithWaitStrategy(wait.ForListeningPort("27017/tcp")),
		)
		if err != nil {
			mongoServer.err = fmt.Errorf("failed to start MongoDB container: %w", err)
			return
		}
		mongoServer.uri, mongoServer.err = container.PortEndpoint(ctx, "27017/tcp", "mongodb")
	})
	if mongoServer.err != nil {
		t.Skipf("database container unavailable: %v", mongoServer.err)
	}
	return mongoServer.uri, databaseName(t)
}

func newTestDB(t *testing.T, driver string, dsn func(string) string, dialect sqlutil.Dialect, adminDatabase string) *TestDB {
	t.Helper()
	name := databaseName(t)

	admin, err := sql.Open(driver, dsn(adminDatabase))
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", dialect.Name(), err)
	}
	configureTestPool(admin)
	if err := admin.Ping(); err != nil {
		_ = admin.Close()
		t.Fatalf("Failed to ping %s: %v", dialect.Name(), err)
	}
	// Safe to format: databaseName only yields [A-Za-z0-9_].
	if _, err := admin.Exec("CREATE DATABASE " + dialect.QuoteIdent(name)); err != nil {
		_ = admin.Close()
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	db, err := sql.Open(driver, dsn(name))
	if err != nil {
		_ = admin.Close()
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	configureTestPool(db)

	tdb := &TestDB{DB: db, DatabaseName: name, DSN: dsn(name), admin: admin, dialect: dialect}
	t.Cleanup(func() { tdb.Teardown(t) })
	return tdb
}

// Teardown drops the test database and closes both connections.
func (tdb *TestDB) Teardown(t *testing.T) {
	t.Helper()
	if tdb.DB != nil {
		if err := tdb.DB.Close(); err != nil {
			t.Logf("Warning: failed to close test database connection: %v", err)
		}
	}
	if tdb.admin == nil {
		return
	}
	if isValidDatabaseName(tdb.DatabaseName) {
		if _, err := tdb.admin.Exec("DROP DATABASE IF EXISTS " + tdb.dialect.QuoteIdent(tdb.DatabaseName)); err != nil {
			t.Logf("Warning: Failed to drop test database %s: %v", tdb.DatabaseName, err)
		}
	}
	if err := tdb.admin.Close(); err != nil {
		t.Logf("Warning: failed to close admin database connection: %v", err)
	}
}

func configureTestPool(db *sql.DB) {
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
}

// databaseName derives a unique, lower-case database name from the test.
func databaseName(t *testing.T) string {
	name := fmt.Sprintf("test_%s_%d", sanitizeName(t.Name()), time.Now().UnixMilli())
	if !isValidDatabaseName(name) {
		t.Fatalf("Invalid database name generated: %s", name)
	}
	return name
}

// sanitizeName keeps letters and digits, lower-cased, and replaces the
// rest with underscores. PostgreSQL folds unquoted names and MySQL limits
// names to 64 characters, so the result is short and lower case.
func sanitizeName(name string) string {
	var result strings.Builder
	for _, ch := range strings.ToLower(name) {
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			result.WriteRune(ch)
		} else {
			result.WriteRune('_')
		}
	}
	sanitized := result.String()
	if len(sanitized) > 40 {
		sanitized = sanitized[:40]
	}
	return sanitized
}

func isValidDatabaseName(name string) bool {
	if name == "" || len(name) > 63 {
		return false
	}
	for _, ch := range name {
		if !((ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '_') {
			return false
		}
	}
	return true
}
