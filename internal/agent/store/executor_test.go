package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telmi-agent/server/internal/agent/model"
	errx "github.com/telmi-agent/server/internal/core/error"
)

func newExecutor(t *testing.T) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	cfg := model.ExecutorConfig{RowLimit: 1000, StatementTimeoutSec: 5, Dialect: "postgres"}
	return NewExecutor(NewSQLStore(db), cfg), mock
}

func gen(query string) *model.GeneratedSQL {
	return &model.GeneratedSQL{Query: query}
}

func TestExecuteAppendsRowCeiling(t *testing.T) {
	e, mock := newExecutor(t)

	mock.ExpectQuery("SELECT nom FROM maisons_france_services LIMIT 1000").
		WillReturnRows(sqlmock.NewRows([]string{"nom"}).AddRow("MFS Rennes"))

	res, err := e.Execute(context.Background(), gen("SELECT nom FROM maisons_france_services"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteKeepsSmallerLimit(t *testing.T) {
	e, mock := newExecutor(t)

	mock.ExpectQuery("SELECT nom FROM usagers LIMIT 10").
		WillReturnRows(sqlmock.NewRows([]string{"nom"}))

	_, err := e.Execute(context.Background(), gen("SELECT nom FROM usagers LIMIT 10"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteClampsOversizedLimit(t *testing.T) {
	e, mock := newExecutor(t)

	mock.ExpectQuery("SELECT nom FROM usagers LIMIT 1000").
		WillReturnRows(sqlmock.NewRows([]string{"nom"}))

	_, err := e.Execute(context.Background(), gen("SELECT nom FROM usagers LIMIT 999999"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteRejectsMutation(t *testing.T) {
	e, _ := newExecutor(t)

	_, err := e.Execute(context.Background(), gen("DELETE FROM demandes"))
	require.Error(t, err)
	assert.Equal(t, errx.KindSQLExecution, errx.KindOf(err))
}

func TestExecuteRejectsEmpty(t *testing.T) {
	e, _ := newExecutor(t)

	_, err := e.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, errx.KindSQLExecution, errx.KindOf(err))

	_, err = e.Execute(context.Background(), gen("   "))
	require.Error(t, err)
}

func TestExecuteStripsCommentBeforeLimit(t *testing.T) {
	e, mock := newExecutor(t)

	mock.ExpectQuery("SELECT 1 LIMIT 1000").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	_, err := e.Execute(context.Background(), gen("SELECT 1 -- trailing note"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteIdempotent(t *testing.T) {
	e, mock := newExecutor(t)

	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"nom", "total"}).
			AddRow("MFS Rennes", int64(42)).
			AddRow("MFS Brest", int64(17))
	}
	mock.ExpectQuery("SELECT nom, total FROM demandes LIMIT 1000").WillReturnRows(rows())
	mock.ExpectQuery("SELECT nom, total FROM demandes LIMIT 1000").WillReturnRows(rows())

	first, err := e.Execute(context.Background(), gen("SELECT nom, total FROM demandes"))
	require.NoError(t, err)
	second, err := e.Execute(context.Background(), gen("SELECT nom, total FROM demandes"))
	require.NoError(t, err)

	assert.Equal(t, first.Columns, second.Columns)
	assert.Equal(t, first.Rows, second.Rows)
}

func TestClassifyTableNotFound(t *testing.T) {
	e, mock := newExecutor(t)

	mock.ExpectQuery("SELECT * FROM ghosts LIMIT 1000").
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "ghosts" does not exist`})

	_, err := e.Execute(context.Background(), gen("SELECT * FROM ghosts"))
	require.Error(t, err)
	assert.Equal(t, errx.KindSQLExecution, errx.KindOf(err))
	assert.Equal(t, errx.ExecTableNotFound, errx.DetailOf(err))
	assert.NotEmpty(t, errx.SuggestionOf(err))
}

func TestClassifyColumnNotFound(t *testing.T) {
	e, mock := newExecutor(t)

	mock.ExpectQuery("SELECT ghost FROM demandes LIMIT 1000").
		WillReturnError(&pgconn.PgError{Code: "42703", Message: `column "ghost" does not exist`})

	_, err := e.Execute(context.Background(), gen("SELECT ghost FROM demandes"))
	require.Error(t, err)
	assert.Equal(t, errx.ExecColumnNotFound, errx.DetailOf(err))
}

func TestClassifySyntaxError(t *testing.T) {
	e, mock := newExecutor(t)

	mock.ExpectQuery("SELECT FROM WHERE LIMIT 1000").
		WillReturnError(&pgconn.PgError{Code: "42601", Message: "syntax error"})

	_, err := e.Execute(context.Background(), gen("SELECT FROM WHERE"))
	require.Error(t, err)
	assert.Equal(t, errx.ExecSyntaxError, errx.DetailOf(err))
}

func TestClassifyUnknown(t *testing.T) {
	e, mock := newExecutor(t)

	mock.ExpectQuery("SELECT 1 LIMIT 1000").
		WillReturnError(assert.AnError)

	_, err := e.Execute(context.Background(), gen("SELECT 1"))
	require.Error(t, err)
	assert.Equal(t, errx.ExecUnknown, errx.DetailOf(err))
}
