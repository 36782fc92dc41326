package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClassifyPostgresCodes(t *testing.T) {
	cases := []struct {
		code string
		want Kind
	}{
		{"23505", KindConflict},
		{"23502", KindValidation},
		{"22003", KindValidation},
		{"40001", KindTransient},
		{"40P01", KindTransient},
		{"55P03", KindTransient},
		{"08006", KindTransient},
	}
	for _, tc := range cases {
		err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: tc.code, Message: "boom"})
		assert.Equal(t, tc.want, KindOf(Classify(err)), tc.code)
	}

	unknown := &pgconn.PgError{Code: "42601"}
	assert.Equal(t, KindInternal, KindOf(Classify(unknown)))
}

func TestClassifyGormAndContext(t *testing.T) {
	assert.True(t, errors.Is(Classify(gorm.ErrDuplicatedKey), ErrConflict))
	assert.True(t, errors.Is(Classify(gorm.ErrRecordNotFound), ErrNotFound))
	assert.True(t, errors.Is(Classify(context.DeadlineExceeded), ErrTransient))

	sqliteErr := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	assert.True(t, errors.Is(Classify(sqliteErr), ErrConflict))
	assert.NoError(t, Classify(nil))
}

func TestClassifyKeepsKindedErrors(t *testing.T) {
	original := OrderState("OT-1", "MIXED", "cancel")
	got := Classify(fmt.Errorf("wrapped: %w", original))
	require.True(t, errors.Is(got, ErrOrderState))
	assert.False(t, errors.Is(got, ErrConflict))
}

func TestInsufficientStockCarriesShortfall(t *testing.T) {
	err := InsufficientStock("F01-20260101000000", decimal.RequireFromString("3"), decimal.RequireFromString("2"))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "F01-20260101000000", e.Lot)
	assert.True(t, e.Shortfall.Equal(decimal.NewFromInt(1)))
	assert.Contains(t, e.Error(), "short by 1.00000")
}
