package shared

import "errors"

// DomainError represents a domain-level error.
// Two domain errors are considered equal by errors.Is when their codes match,
// so detailed variants built with NewDomainError still match the sentinels below.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same error code
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewRetryableError creates a domain error the caller may retry unchanged
func NewRetryableError(code, message string) *DomainError {
	return &DomainError{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// Error codes
const (
	CodeNotFound                     = "NOT_FOUND"
	CodeAlreadyExists                = "ALREADY_EXISTS"
	CodeValidation                   = "VALIDATION_ERROR"
	CodeNoOpMovement                 = "NO_OP_MOVEMENT"
	CodeZeroValuation                = "ZERO_VALUATION"
	CodeInsufficientStock            = "INSUFFICIENT_STOCK"
	CodeInsufficientAvailable        = "INSUFFICIENT_AVAILABLE"
	CodeRepostRequired               = "REPOST_REQUIRED"
	CodeRepostAborted                = "REPOST_ABORTED"
	CodeInvalidSerialStateTransition = "INVALID_SERIAL_STATE_TRANSITION"
	CodeConcurrencyConflict          = "CONCURRENCY_CONFLICT"
	CodeAlreadyCancelled             = "ALREADY_CANCELLED"
	CodeInvalidState                 = "INVALID_STATE"
	CodeDisabled                     = "DISABLED"
)

// Common domain errors
var (
	ErrNotFound                     = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists                = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrValidation                   = NewDomainError(CodeValidation, "Invalid input provided")
	ErrNoOpMovement                 = NewDomainError(CodeNoOpMovement, "Movement quantity must not be zero")
	ErrZeroValuation                = NewDomainError(CodeZeroValuation, "Valuation rate is zero and zero valuation is not allowed")
	ErrInsufficientStock            = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrInsufficientAvailable        = NewDomainError(CodeInsufficientAvailable, "Requested quantity exceeds available stock")
	ErrRepostRequired               = NewDomainError(CodeRepostRequired, "Posting is earlier than existing entries and requires a repost")
	ErrRepostAborted                = NewDomainError(CodeRepostAborted, "Correction rejected to preserve downstream balances")
	ErrInvalidSerialStateTransition = NewDomainError(CodeInvalidSerialStateTransition, "Serial number state transition not allowed")
	ErrConcurrencyConflict          = NewRetryableError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrAlreadyCancelled             = NewDomainError(CodeAlreadyCancelled, "Ledger entry is already cancelled")
	ErrInvalidState                 = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrDisabled                     = NewDomainError(CodeDisabled, "Resource is disabled")
)

// IsRetryable reports whether err carries a retryable domain error
func IsRetryable(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}
