package sqlstore

import (
	"errors"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
)

// backendError carries the engine's error code so the resolver layer can
// surface it in the database error extensions.
type backendError struct {
	err  error
	code string
}

func (e *backendError) Error() string       { return e.err.Error() }
func (e *backendError) Unwrap() error       { return e.err }
func (e *backendError) BackendCode() string { return e.code }

// classify annotates driver errors with their engine code.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return &backendError{err: err, code: strconv.Itoa(int(myErr.Number))}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &backendError{err: err, code: pgErr.Code}
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return &backendError{err: err, code: strconv.Itoa(liteErr.Code())}
	}
	return err
}
