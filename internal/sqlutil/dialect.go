package sqlutil

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"cms-graphql/internal/schema"
)

// MatchKind selects where a substring match is anchored.
type MatchKind string

const (
	MatchContains   MatchKind = "contains"
	MatchStartsWith MatchKind = "startsWith"
	MatchEndsWith   MatchKind = "endsWith"
)

// Dialect abstracts the SQL differences between the supported engines.
type Dialect interface {
	// Name is the provider name, e.g. "postgresql".
	Name() string
	// QuoteIdent quotes a table or column name.
	QuoteIdent(name string) string
	// Placeholder is the squirrel bind-parameter format.
	Placeholder() sq.PlaceholderFormat
	// ColumnType is the DDL type of a storage scalar.
	ColumnType(scalar string) string
	// Match builds a substring predicate over an already quoted column.
	Match(column string, kind MatchKind, value string, insensitive bool) sq.Sqlizer
	// ConcurrentWrites reports whether the engine tolerates parallel writers.
	ConcurrentWrites() bool
}

// MySQL is the Dialect for MySQL and compatible servers.
var MySQL Dialect = mysqlDialect{}

// PostgreSQL is the Dialect for PostgreSQL.
var PostgreSQL Dialect = postgresDialect{}

// SQLite is the Dialect for SQLite.
var SQLite Dialect = sqliteDialect{}

// DialectFor returns the dialect of a provider name.
func DialectFor(provider string) (Dialect, error) {
	switch provider {
	case "mysql":
		return MySQL, nil
	case "postgresql", "postgres":
		return PostgreSQL, nil
	case "sqlite":
		return SQLite, nil
	}
	return nil, fmt.Errorf("no SQL dialect for provider %q", provider)
}

func likePattern(kind MatchKind, value string) string {
	escaped := EscapeLike(value)
	switch kind {
	case MatchStartsWith:
		return escaped + "%"
	case MatchEndsWith:
		return "%" + escaped
	default:
		return "%" + escaped + "%"
	}
}

// ansiEscape declares backslash as the LIKE escape character. MySQL uses it
// by default and reads this literal as unterminated.
const ansiEscape = ` ESCAPE '\'`

func lowerLike(column string, kind MatchKind, value, escape string) sq.Sqlizer {
	return sq.Expr(fmt.Sprintf("LOWER(%s) LIKE LOWER(?)%s", column, escape), likePattern(kind, value))
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string                      { return "mysql" }
func (mysqlDialect) QuoteIdent(name string) string     { return QuoteIdentifier(name) }
func (mysqlDialect) Placeholder() sq.PlaceholderFormat { return sq.Question }
func (mysqlDialect) ConcurrentWrites() bool            { return true }

func (mysqlDialect) ColumnType(scalar string) string {
	switch scalar {
	case schema.ScalarInt:
		return "INT"
	case schema.ScalarFloat:
		return "DOUBLE"
	case schema.ScalarBoolean:
		return "BOOLEAN"
	case schema.ScalarDateTime:
		return "DATETIME(3)"
	}
	// Indexed text columns need a bounded length.
	return "VARCHAR(191)"
}

func (mysqlDialect) Match(column string, kind MatchKind, value string, insensitive bool) sq.Sqlizer {
	if insensitive {
		return lowerLike(column, kind, value, "")
	}
	// Comparisons follow the column collation.
	return sq.Expr(fmt.Sprintf("%s LIKE ?", column), likePattern(kind, value))
}

type postgresDialect struct{}

func (postgresDialect) Name() string                      { return "postgresql" }
func (postgresDialect) QuoteIdent(name string) string     { return QuoteDoubleIdentifier(name) }
func (postgresDialect) Placeholder() sq.PlaceholderFormat { return sq.Dollar }
func (postgresDialect) ConcurrentWrites() bool            { return true }

func (postgresDialect) ColumnType(scalar string) string {
	switch scalar {
	case schema.ScalarInt:
		return "INTEGER"
	case schema.ScalarFloat:
		return "DOUBLE PRECISION"
	case schema.ScalarBoolean:
		return "BOOLEAN"
	case schema.ScalarDateTime:
		return "TIMESTAMP(3)"
	}
	return "TEXT"
}

func (postgresDialect) Match(column string, kind MatchKind, value string, insensitive bool) sq.Sqlizer {
	op := "LIKE"
	if insensitive {
		op = "ILIKE"
	}
	return sq.Expr(fmt.Sprintf("%s %s ?%s", column, op, ansiEscape), likePattern(kind, value))
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string                      { return "sqlite" }
func (sqliteDialect) QuoteIdent(name string) string     { return QuoteDoubleIdentifier(name) }
func (sqliteDialect) Placeholder() sq.PlaceholderFormat { return sq.Question }
func (sqliteDialect) ConcurrentWrites() bool            { return false }

func (sqliteDialect) ColumnType(scalar string) string {
	switch scalar {
	case schema.ScalarInt:
		return "INTEGER"
	case schema.ScalarFloat:
		return "REAL"
	case schema.ScalarBoolean:
		return "BOOLEAN"
	case schema.ScalarDateTime:
		return "DATETIME"
	}
	return "TEXT"
}

// Match uses GLOB for case-sensitive matches since LIKE ignores ASCII case
// in SQLite.
func (sqliteDialect) Match(column string, kind MatchKind, value string, insensitive bool) sq.Sqlizer {
	if insensitive {
		return lowerLike(column, kind, value, ansiEscape)
	}
	escaped := EscapeGlob(value)
	var pattern string
	switch kind {
	case MatchStartsWith:
		pattern = escaped + "*"
	case MatchEndsWith:
		pattern = "*" + escaped
	default:
		pattern = "*" + escaped + "*"
	}
	return sq.Expr(fmt.Sprintf("%s GLOB ?", column), pattern)
}
