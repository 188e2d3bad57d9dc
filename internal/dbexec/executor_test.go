package dbexec

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInTxCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	exec := NewStandardExecutor(db)
	err = exec.InTx(context.Background(), func(q QueryExecutor) error {
		_, err := q.ExecContext(context.Background(), "UPDATE t SET a = 1")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewStandardExecutor(db).InTx(context.Background(), func(QueryExecutor) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = NewStandardExecutor(db).InTx(context.Background(), func(QueryExecutor) error { panic("bad") })
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilDatabase(t *testing.T) {
	exec := NewStandardExecutor(nil)
	_, err := exec.QueryContext(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	_, err = exec.BeginTx(context.Background())
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
