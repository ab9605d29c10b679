package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := NewNotFoundError("Debtor", "abc")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Debtor 'abc' not found", err.Error())
}

func TestDomainError_WrappedStillMatches(t *testing.T) {
	err := fmt.Errorf("record payment: %w", NewValidationError("amount must be positive"))

	assert.ErrorIs(t, err, ErrValidation)
	domainErr, ok := AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, domainErr.Code)
}

func TestNewOverpaymentError(t *testing.T) {
	err := NewOverpaymentError(decimal.NewFromInt(150), decimal.NewFromInt(60))

	assert.ErrorIs(t, err, ErrOverpayment)
	require.NotNil(t, err.Balance)
	assert.True(t, err.Balance.Equal(decimal.NewFromInt(60)))
	assert.Contains(t, err.Error(), "GHS 150.00")
	assert.Contains(t, err.Error(), "GHS 60.00")
}

func TestNewInconsistentKindError(t *testing.T) {
	err := NewInconsistentKindError(decimal.NewFromInt(40), decimal.NewFromInt(60))

	assert.ErrorIs(t, err, ErrInconsistentKind)
	require.NotNil(t, err.Balance)
	assert.Contains(t, err.Error(), "GHS 60.00")
}

func TestNewPersistenceError_Unwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := NewPersistenceError(cause)

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
}

func TestAsDomainError_PlainError(t *testing.T) {
	_, ok := AsDomainError(errors.New("boom"))
	assert.False(t, ok)
}
