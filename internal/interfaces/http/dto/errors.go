package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
	// ErrCodeValidationLength is used when a field length is invalid
	ErrCodeValidationLength = "ERR_VALIDATION_LENGTH"
	// ErrCodeNoOpMovement is used when a movement carries zero quantity
	ErrCodeNoOpMovement = "ERR_NO_OP_MOVEMENT"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when a stock key lock could not be taken
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeDisabled is used when an item, warehouse or batch is disabled
	ErrCodeDisabled = "ERR_DISABLED"
)

// Ledger rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeInsufficientStock is used when an outward movement exceeds the balance
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"
	// ErrCodeInsufficientAvailable is used when a reservation exceeds unreserved stock
	ErrCodeInsufficientAvailable = "ERR_INSUFFICIENT_AVAILABLE"
	// ErrCodeZeroValuation is used when no rate could be resolved
	ErrCodeZeroValuation = "ERR_ZERO_VALUATION"
	// ErrCodeRepostRequired is used when a backdated posting needs a repost the caller disallowed
	ErrCodeRepostRequired = "ERR_REPOST_REQUIRED"
	// ErrCodeRepostAborted is used when a correction would drive a later balance negative
	ErrCodeRepostAborted = "ERR_REPOST_ABORTED"
	// ErrCodeInvalidSerialTransition is used for illegal serial number lifecycle moves
	ErrCodeInvalidSerialTransition = "ERR_INVALID_SERIAL_TRANSITION"
	// ErrCodeAlreadyCancelled is used when a ledger entry was already cancelled
	ErrCodeAlreadyCancelled = "ERR_ALREADY_CANCELLED"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	// ErrCodeTooManyRequests is an alias for rate limiting
	ErrCodeTooManyRequests = "ERR_TOO_MANY_REQUESTS"
	// ErrCodeRequestTooLarge is used when the request body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,
	ErrCodeValidationLength:   http.StatusBadRequest,
	ErrCodeNoOpMovement:       http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeDisabled:            http.StatusUnprocessableEntity,

	// Ledger rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:            http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock:       http.StatusUnprocessableEntity,
	ErrCodeInsufficientAvailable:   http.StatusUnprocessableEntity,
	ErrCodeZeroValuation:           http.StatusUnprocessableEntity,
	ErrCodeRepostRequired:          http.StatusUnprocessableEntity,
	ErrCodeRepostAborted:           http.StatusUnprocessableEntity,
	ErrCodeInvalidSerialTransition: http.StatusUnprocessableEntity,
	ErrCodeAlreadyCancelled:        http.StatusConflict,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeTooManyRequests: http.StatusTooManyRequests,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                       ErrCodeNotFound,
	"ALREADY_EXISTS":                  ErrCodeAlreadyExists,
	"VALIDATION_ERROR":                ErrCodeValidation,
	"NO_OP_MOVEMENT":                  ErrCodeNoOpMovement,
	"ZERO_VALUATION":                  ErrCodeZeroValuation,
	"INSUFFICIENT_STOCK":              ErrCodeInsufficientStock,
	"INSUFFICIENT_AVAILABLE":          ErrCodeInsufficientAvailable,
	"REPOST_REQUIRED":                 ErrCodeRepostRequired,
	"REPOST_ABORTED":                  ErrCodeRepostAborted,
	"INVALID_SERIAL_STATE_TRANSITION": ErrCodeInvalidSerialTransition,
	"CONCURRENCY_CONFLICT":            ErrCodeConcurrencyConflict,
	"ALREADY_CANCELLED":               ErrCodeAlreadyCancelled,
	"INVALID_STATE":                   ErrCodeInvalidState,
	"DISABLED":                        ErrCodeDisabled,
	"BAD_REQUEST":                     ErrCodeBadRequest,
	"INTERNAL_ERROR":                  ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
