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
	// ErrCodeInvalidRequest is used for structurally invalid request bodies
	ErrCodeInvalidRequest = "ERR_INVALID_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when the API key is missing or invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the credential lacks access
	ErrCodeForbidden = "ERR_FORBIDDEN"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeUnknownModel is used when no pricing exists for a model
	ErrCodeUnknownModel = "ERR_UNKNOWN_MODEL"
)

// Billing error codes
const (
	// ErrCodeInsufficientCredits is used when the balance cannot cover the
	// worst-case estimate of a request
	ErrCodeInsufficientCredits = "ERR_INSUFFICIENT_CREDITS"
	// ErrCodeInvalidMargin is used when a margin config is out of range
	ErrCodeInvalidMargin = "ERR_INVALID_MARGIN"
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when the per-tier rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// Upstream error codes
const (
	// ErrCodeDownstream is used when the provider request fails or times out
	ErrCodeDownstream = "ERR_DOWNSTREAM"
	// ErrCodeWebhookSignature is used when webhook verification fails
	ErrCodeWebhookSignature = "ERR_WEBHOOK_SIGNATURE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:     http.StatusBadRequest,
	ErrCodeInvalidRequest: http.StatusBadRequest,
	ErrCodeInvalidJSON:    http.StatusBadRequest,
	ErrCodeBadRequest:     http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeUnknownModel: http.StatusBadRequest,

	ErrCodeInsufficientCredits: http.StatusPaymentRequired,
	ErrCodeInvalidMargin:       http.StatusBadRequest,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,

	ErrCodeRateLimited: http.StatusTooManyRequests,

	ErrCodeDownstream:       http.StatusBadGateway,
	ErrCodeWebhookSignature: http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to transport codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"INVALID_INPUT":        ErrCodeInvalidRequest,
	"INVALID_REQUEST":      ErrCodeInvalidRequest,
	"INVALID_STATE":        ErrCodeInvalidState,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"FORBIDDEN":            ErrCodeForbidden,
	"INSUFFICIENT_CREDITS": ErrCodeInsufficientCredits,
	"UNKNOWN_MODEL":        ErrCodeUnknownModel,
	"INVALID_MARGIN":       ErrCodeInvalidMargin,
	"INVALID_USAGE":        ErrCodeInvalidRequest,
	"INVALID_MODEL":        ErrCodeInvalidRequest,
	"INVALID_ACCOUNT":      ErrCodeInvalidRequest,
	"INVALID_TIER":         ErrCodeInvalidRequest,
}

// NormalizeErrorCode converts a domain error code to the transport format.
// Codes already in the transport format or unknown pass through as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
