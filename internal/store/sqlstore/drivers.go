package sqlstore

import (
	"fmt"

	// Registers the "pgx" database/sql driver. The mysql and sqlite drivers
	// register through the imports in errors.go.
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"cms-graphql/internal/store"
)

// DriverName returns the database/sql driver registered for a provider.
func DriverName(provider string) (string, error) {
	switch provider {
	case store.ProviderMySQL:
		return "mysql", nil
	case store.ProviderPostgreSQL:
		return "pgx", nil
	case store.ProviderSQLite:
		return "sqlite", nil
	}
	return "", fmt.Errorf("provider %q has no SQL driver", provider)
}

// DBSystem is the OpenTelemetry db.system attribute of a provider.
func DBSystem(provider string) attribute.KeyValue {
	switch provider {
	case store.ProviderPostgreSQL:
		return semconv.DBSystemPostgreSQL
	case store.ProviderSQLite:
		return semconv.DBSystemSqlite
	}
	return semconv.DBSystemMySQL
}
