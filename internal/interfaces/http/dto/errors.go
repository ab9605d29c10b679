package dto

import (
	"net/http"

	"github.com/cas-inventory/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Domain error codes pass through to the client unchanged
const (
	ErrCodeValidation       = shared.CodeValidation
	ErrCodeNotFound         = shared.CodeNotFound
	ErrCodeOverpayment      = shared.CodeOverpayment
	ErrCodeInconsistentKind = shared.CodeInconsistentKind
	ErrCodeConflict         = shared.CodeConflict
	ErrCodePersistence      = shared.CodePersistence
)

// Transport error codes
const (
	// ErrCodeBadRequest is used when the body or a parameter cannot be parsed
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeUnauthorized is used when the admin token is missing or invalid
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeTokenExpired is used when the admin token has expired
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	// ErrCodeTokenRevoked is used after logout
	ErrCodeTokenRevoked = "TOKEN_REVOKED"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	// ErrCodeLockTimeout is used when another request holds the entity for too long
	ErrCodeLockTimeout = "LOCK_TIMEOUT"
	// ErrCodeRemoteUnavailable is used when a manual resync cannot reach the remote store
	ErrCodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	// ErrCodeIdempotencyKeyReused is used when an Idempotency-Key comes back with a different request
	ErrCodeIdempotencyKeyReused = "IDEMPOTENCY_KEY_REUSED"
	// ErrCodeRequestInProgress is used while the first request for an Idempotency-Key is still running
	ErrCodeRequestInProgress = "REQUEST_IN_PROGRESS"
	// ErrCodeInternal is used for unexpected failures
	ErrCodeInternal = "INTERNAL_ERROR"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeOverpayment:      http.StatusConflict,
	ErrCodeInconsistentKind: http.StatusConflict,
	ErrCodeConflict:         http.StatusConflict,
	ErrCodePersistence:      http.StatusInternalServerError,

	ErrCodeBadRequest:           http.StatusBadRequest,
	ErrCodeUnauthorized:         http.StatusUnauthorized,
	ErrCodeTokenExpired:         http.StatusUnauthorized,
	ErrCodeTokenRevoked:         http.StatusUnauthorized,
	ErrCodeRequestTooLarge:      http.StatusRequestEntityTooLarge,
	ErrCodeLockTimeout:          http.StatusConflict,
	ErrCodeRemoteUnavailable:    http.StatusServiceUnavailable,
	ErrCodeIdempotencyKeyReused: http.StatusUnprocessableEntity,
	ErrCodeRequestInProgress:    http.StatusConflict,
	ErrCodeInternal:             http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes are 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string             `json:"error"`
	Code      string             `json:"code"`
	Balance   string             `json:"balance,omitempty"` // outstanding balance for payment errors
	Details   []ValidationDetail `json:"details,omitempty"`
	RequestID string             `json:"request_id,omitempty"`
}

// ValidationDetail describes one invalid request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewErrorResponse creates an error body
func NewErrorResponse(code, message, requestID string) ErrorResponse {
	return ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID,
	}
}

// NewDomainErrorResponse creates the error body for a domain error, carrying the
// balance of payment errors formatted to two decimals.
func NewDomainErrorResponse(err *shared.DomainError, requestID string) ErrorResponse {
	resp := NewErrorResponse(err.Code, err.Message, requestID)
	if err.Balance != nil {
		resp.Balance = FormatMoney(*err.Balance)
	}
	if err.Code == ErrCodePersistence {
		resp.Error = "Failed to save changes; nothing was modified"
	}
	return resp
}

// NewValidationErrorResponse creates a 400 body listing the invalid fields
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) ErrorResponse {
	resp := NewErrorResponse(ErrCodeValidation, message, requestID)
	resp.Details = details
	return resp
}

// FormatMoney renders an amount with exactly two decimals
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
