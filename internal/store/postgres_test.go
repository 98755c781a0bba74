package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("insert invoice: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, isUniqueViolation(dup))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(pgx.ErrNoRows, domain.ErrInvoiceNotFound), domain.ErrInvoiceNotFound)
	other := errors.New("conn reset")
	assert.Equal(t, other, notFound(other, domain.ErrInvoiceNotFound))
}

func TestNullableArgs(t *testing.T) {
	assert.Nil(t, numericArg(nil))
	assert.Nil(t, dateArg(nil))
	assert.Nil(t, intArg(nil))
	assert.Nil(t, idArg(0))

	d := decimal.RequireFromString("1250.50")
	assert.Equal(t, "1250.5", numericArg(&d))
	n := 3
	assert.Equal(t, int32(3), intArg(&n))
	assert.Equal(t, int64(9), idArg(9))
}

func TestScanHelpers(t *testing.T) {
	got, err := decimalFrom(pgtype.Text{String: "90.00", Valid: true})
	require.NoError(t, err)
	assert.Equal(t, "90", got.String())

	got, err = decimalFrom(pgtype.Text{})
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = decimalFrom(pgtype.Text{String: "ninety", Valid: true})
	assert.Error(t, err)

	date := dateFrom(pgtype.Date{Time: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), Valid: true})
	require.NotNil(t, date)
	assert.Equal(t, "2024-04-01", date.String())
	assert.Nil(t, dateFrom(pgtype.Date{}))

	period := intFrom(pgtype.Int4{Int32: 3, Valid: true})
	require.NotNil(t, period)
	assert.Equal(t, 3, *period)
	assert.Nil(t, intFrom(pgtype.Int4{}))
}
