package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: earning_records.job_id")))
	assert.False(t, IsDuplicateKeyErr(errors.New("boom")))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, IsRetryable(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
}

func TestDialect(t *testing.T) {
	d, err := Dialect(Config{Type: "sqlite", Path: "test.db"})
	assert.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	d, err = Dialect(Config{Type: "postgres", Host: "localhost", Port: "5432"})
	assert.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	_, err = Dialect(Config{Type: "mysql"})
	assert.Error(t, err)
}

func TestPostgresURLDefaultsSSLMode(t *testing.T) {
	url := PostgresURL(Config{User: "u", Password: "p", Host: "h", Port: "5432", Name: "techwallet"})
	assert.Equal(t, "postgres://u:p@h:5432/techwallet?sslmode=disable", url)
}
