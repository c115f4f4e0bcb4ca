package db

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func TestRunMigrationsAppliesEveryStatement(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()

	for _, m := range migrations {
		mock.ExpectExec(regexp.QuoteMeta(m)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, runMigrations(context.Background(), sqlx.NewDb(raw, "postgres")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsStopsOnError(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()

	mock.ExpectExec(regexp.QuoteMeta(migrations[0])).WillReturnError(sqlmock.ErrCancelled)
	require.ErrorIs(t, runMigrations(context.Background(), sqlx.NewDb(raw, "postgres")), sqlmock.ErrCancelled)
	require.NoError(t, mock.ExpectationsWereMet())
}
