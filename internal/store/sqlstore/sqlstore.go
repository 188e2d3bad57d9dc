// Package sqlstore is the relational store backend for PostgreSQL, MySQL
// and SQLite. Statements are built with squirrel and run through dbexec.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"

	sq "github.com/Masterminds/squirrel"

	"cms-graphql/internal/dbexec"
	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/sqlutil"
	"cms-graphql/internal/store"
)

// Store runs list operations against a SQL database whose tables follow
// the dbschema model.
type Store struct {
	db      *sql.DB
	exec    *dbexec.StandardExecutor
	dialect sqlutil.Dialect
	schema  *dbschema.Schema
	logger  *slog.Logger
}

// New wraps an open database handle.
func New(db *sql.DB, dialect sqlutil.Dialect, s *dbschema.Schema, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:      db,
		exec:    dbexec.NewStandardExecutor(db),
		dialect: dialect,
		schema:  s,
		logger:  logger,
	}
}

// Model implements store.Client.
func (s *Store) Model(listKey string) (store.Model, error) {
	m, ok := s.schema.Model(listKey)
	if !ok {
		return nil, store.UnknownModel(listKey)
	}
	return &model{st: s, m: m}, nil
}

// Provider implements store.Client.
func (s *Store) Provider() store.Provider {
	return store.Provider{Name: s.dialect.Name(), ConcurrentWrites: s.dialect.ConcurrentWrites()}
}

// Close implements store.Client.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateTables creates every table of the schema. It expects an empty
// database and runs in a single transaction where the engine allows DDL in
// transactions.
func (s *Store) CreateTables(ctx context.Context) error {
	stmts := s.schema.SQL(s.dialect)
	run := func(q dbexec.QueryExecutor) error {
		for _, stmt := range stmts {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return classify(fmt.Errorf("failed to create tables: %w", err))
			}
		}
		return nil
	}
	if s.dialect.Name() == store.ProviderMySQL {
		// MySQL commits implicitly after every DDL statement.
		return run(s.exec)
	}
	return s.exec.InTx(ctx, run)
}

func (s *Store) statement(b interface {
	ToSql() (string, []interface{}, error)
}) (string, []any, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build SQL: %w", err)
	}
	return query, args, nil
}

func (s *Store) columns(m *dbschema.Model) []string {
	cols := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		cols[i] = s.dialect.QuoteIdent(c.Name)
	}
	return cols
}

func (s *Store) selectItems(m *dbschema.Model, args store.FindArgs) (sq.SelectBuilder, error) {
	builder := sq.Select(s.columns(m)...).
		From(s.dialect.QuoteIdent(m.Name)).
		PlaceholderFormat(s.dialect.Placeholder())
	cond, err := s.buildWhereCondition(m, args.Where)
	if err != nil {
		return builder, err
	}
	if cond != nil {
		builder = builder.Where(cond)
	}
	for _, o := range args.OrderBy {
		if _, ok := m.Column(o.Field); !ok {
			return builder, fmt.Errorf("unknown order by column: %s.%s", m.Name, o.Field)
		}
		builder = builder.OrderBy(s.orderTerm(o))
	}
	if args.Take != nil {
		builder = builder.Limit(uint64(*args.Take))
	}
	if args.Skip > 0 {
		if args.Take == nil && s.dialect.Name() != store.ProviderPostgreSQL {
			// MySQL and SQLite only accept OFFSET after LIMIT.
			builder = builder.Limit(math.MaxInt64)
		}
		builder = builder.Offset(uint64(args.Skip))
	}
	return builder, nil
}

// orderTerm sorts nulls first in ascending order on every engine.
func (s *Store) orderTerm(o store.OrderBy) string {
	col := s.dialect.QuoteIdent(o.Field)
	if o.Direction == store.Desc {
		if s.dialect.Name() == store.ProviderPostgreSQL {
			return col + " DESC NULLS LAST"
		}
		return col + " DESC"
	}
	if s.dialect.Name() == store.ProviderPostgreSQL {
		return col + " ASC NULLS FIRST"
	}
	return col + " ASC"
}

func (s *Store) query(ctx context.Context, q dbexec.QueryExecutor, m *dbschema.Model, b sq.SelectBuilder) ([]schema.Item, error) {
	query, args, err := s.statement(b)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("sql query", slog.String("model", m.Name), slog.String("sql", query))
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	items, err := scanItems(m, rows)
	if err != nil {
		return nil, classify(err)
	}
	return items, nil
}

func (s *Store) execute(ctx context.Context, q dbexec.QueryExecutor, b interface {
	ToSql() (string, []interface{}, error)
}) (int64, error) {
	query, args, err := s.statement(b)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("sql exec", slog.String("sql", query))
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	// Not every driver reports affected rows.
	n, _ := res.RowsAffected()
	return n, nil
}

type model struct {
	st *Store
	m  *dbschema.Model
}

func (md *model) FindUnique(ctx context.Context, unique map[string]any) (schema.Item, error) {
	return md.FindFirst(ctx, store.UniqueFilter(unique))
}

func (md *model) FindFirst(ctx context.Context, where store.Filter) (schema.Item, error) {
	take := 1
	items, err := md.FindMany(ctx, store.FindArgs{Where: where, Take: &take})
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

func (md *model) FindMany(ctx context.Context, args store.FindArgs) ([]schema.Item, error) {
	b, err := md.st.selectItems(md.m, args)
	if err != nil {
		return nil, err
	}
	return md.st.query(ctx, md.st.exec, md.m, b)
}

func (md *model) Count(ctx context.Context, where store.Filter) (int, error) {
	b := sq.Select("COUNT(*)").
		From(md.st.dialect.QuoteIdent(md.m.Name)).
		PlaceholderFormat(md.st.dialect.Placeholder())
	cond, err := md.st.buildWhereCondition(md.m, where)
	if err != nil {
		return 0, err
	}
	if cond != nil {
		b = b.Where(cond)
	}
	query, args, err := md.st.statement(b)
	if err != nil {
		return 0, err
	}
	rows, err := md.st.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, classify(err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, classify(err)
	}
	return int(n), nil
}
