package shared

import (
	"errors"
	"fmt"

	"github.com/cas-inventory/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Domain error codes
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeOverpayment      = "OVERPAYMENT"
	CodeInconsistentKind = "INCONSISTENT_KIND"
	CodeConflict         = "CONFLICT"
	CodePersistence      = "PERSISTENCE_ERROR"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Balance is the outstanding balance a payment was checked against, set for
	// OVERPAYMENT and INCONSISTENT_KIND so callers can show it to the user.
	Balance *decimal.Decimal `json:"balance,omitempty"`

	cause error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches any DomainError carrying the same code, so errors.Is(err, ErrNotFound) works
// for every not-found error regardless of its message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrValidation       = NewDomainError(CodeValidation, "Invalid input provided")
	ErrNotFound         = NewDomainError(CodeNotFound, "Resource not found")
	ErrOverpayment      = NewDomainError(CodeOverpayment, "Payment exceeds the outstanding balance")
	ErrInconsistentKind = NewDomainError(CodeInconsistentKind, "Payment kind does not match the amount")
	ErrConflict         = NewDomainError(CodeConflict, "Operation not allowed in current state")
	ErrPersistence      = NewDomainError(CodePersistence, "Storage is unavailable")
)

// NewValidationError creates a VALIDATION_ERROR with a formatted message
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError creates a NOT_FOUND error for the given resource and id
func NewNotFoundError(resource, id string) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s '%s' not found", resource, id))
}

// NewConflictError creates a CONFLICT error
func NewConflictError(message string) *DomainError {
	return NewDomainError(CodeConflict, message)
}

// NewOverpaymentError reports a payment larger than the outstanding balance
func NewOverpaymentError(amount, balance decimal.Decimal) *DomainError {
	err := NewDomainError(CodeOverpayment, fmt.Sprintf(
		"Payment of %s exceeds the outstanding balance of %s",
		valueobject.NewMoneyGHS(amount).Display(), valueobject.NewMoneyGHS(balance).Display()))
	err.Balance = &balance
	return err
}

// NewInconsistentKindError reports a full payment that does not clear the balance
func NewInconsistentKindError(amount, balance decimal.Decimal) *DomainError {
	err := NewDomainError(CodeInconsistentKind, fmt.Sprintf(
		"A full payment must equal the outstanding balance of %s; record %s as a partial payment",
		valueobject.NewMoneyGHS(balance).Display(), valueobject.NewMoneyGHS(amount).Display()))
	err.Balance = &balance
	return err
}

// NewPersistenceError wraps a storage failure
func NewPersistenceError(cause error) *DomainError {
	err := NewDomainError(CodePersistence, "Failed to persist changes")
	err.cause = cause
	return err
}

// AsDomainError extracts a DomainError from an error chain
func AsDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}
