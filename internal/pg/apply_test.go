package pg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestApplyDDL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ddl := map[string]string{
		"200_fk_photo_owner_id_fkey": "alter table photo add constraint photo_owner_id_fkey",
		"000_extensions":             "create extension if not exists pgcrypto;",
		"100_tables":                 "create table if not exists photo ();",
		"150_indexes":                "  ",
	}

	mock.ExpectExec(regexp.QuoteMeta("create extension if not exists pgcrypto;")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("create table if not exists photo ();")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("alter table photo add constraint photo_owner_id_fkey")).
		WillReturnError(&pgconn.PgError{Code: "42710", Message: `constraint "photo_owner_id_fkey" already exists`})

	res, err := ApplyDDL(context.Background(), db, ddl, quiet)
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{Applied: 2, Skipped: 1}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDDLStopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("create table").
		WillReturnError(&pgconn.PgError{Code: "42601", Message: "syntax error"})

	res, err := ApplyDDL(context.Background(), db, map[string]string{
		"100_tables":    "create table broken (",
		"300_junctions": "create table if not exists j ();",
	}, quiet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply ddl 100_tables")
	assert.Zero(t, res.Applied)

	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "42601", pgErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlreadyExists(t *testing.T) {
	assert.True(t, alreadyExists(&pgconn.PgError{Code: "42P07"}))
	assert.True(t, alreadyExists(fmt.Errorf("phase 100_tables: %w", &pgconn.PgError{Code: "42710"})))
	assert.False(t, alreadyExists(errors.New(`relation "user" already exists`)), "only SQLSTATE codes count")
	assert.False(t, alreadyExists(&pgconn.PgError{Code: "23505"}))
	assert.False(t, alreadyExists(errors.New("connection refused")))
}

func TestURL(t *testing.T) {
	assert.Equal(t, "postgres://app:p%40ss@db:5432/gql?sslmode=disable", URL("db", 5432, "app", "p@ss", "gql", ""))
}
