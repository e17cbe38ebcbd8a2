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
	// ErrCodeServiceUnavailable is used when a dependency is temporarily unavailable
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
)

// Validation error codes
const (
	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"
	ErrCodeValidationRange    = "ERR_VALIDATION_RANGE"
	ErrCodeValidationLength   = "ERR_VALIDATION_LENGTH"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
)

// Ledger error codes
const (
	// ErrCodeInvalidQuantity is used when a line quantity is not positive
	ErrCodeInvalidQuantity = "ERR_INVALID_QUANTITY"
	// ErrCodeInvalidPrice is used when a unit price is negative
	ErrCodeInvalidPrice = "ERR_INVALID_PRICE"
	// ErrCodeInvalidAmount is used for negative budgets, expenses and payments
	ErrCodeInvalidAmount = "ERR_INVALID_AMOUNT"
	// ErrCodeEmptyInvoice is used when an invoice has no line items
	ErrCodeEmptyInvoice = "ERR_EMPTY_INVOICE"
	// ErrCodeInvoiceLocked is used when editing a non-draft invoice
	ErrCodeInvoiceLocked = "ERR_INVOICE_LOCKED"
	// ErrCodeInvalidTransition is used when an event is not allowed from the current status
	ErrCodeInvalidTransition = "ERR_INVALID_TRANSITION"
	// ErrCodeTemplateMismatch is used when a template cannot render the invoice type
	ErrCodeTemplateMismatch = "ERR_TEMPLATE_MISMATCH"
	// ErrCodeNoDefaultTemplate is used when no active default exists for the type
	ErrCodeNoDefaultTemplate = "ERR_NO_DEFAULT_TEMPLATE"
	// ErrCodeDefaultTemplateLocked is used when deactivating a default template
	ErrCodeDefaultTemplateLocked = "ERR_DEFAULT_TEMPLATE_LOCKED"
	// ErrCodeNumberingContention is used when an invoice number could not be claimed in time
	ErrCodeNumberingContention = "ERR_NUMBERING_CONTENTION"
)

// Document rendering error codes
const (
	ErrCodeRenderTimeout   = "ERR_RENDER_TIMEOUT"
	ErrCodeRenderFailed    = "ERR_RENDER_FAILED"
	ErrCodeInvalidTemplate = "ERR_INVALID_TEMPLATE"
	ErrCodeInvalidHTML     = "ERR_INVALID_HTML"
)

// Input error codes
const (
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON  = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:            http.StatusInternalServerError,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,
	ErrCodeValidationLength:   http.StatusBadRequest,

	// Auth errors
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeBusinessRule: http.StatusUnprocessableEntity,

	// Ledger input errors -> 400, state errors -> 409/422
	ErrCodeInvalidQuantity:       http.StatusBadRequest,
	ErrCodeInvalidPrice:          http.StatusBadRequest,
	ErrCodeInvalidAmount:         http.StatusBadRequest,
	ErrCodeEmptyInvoice:          http.StatusBadRequest,
	ErrCodeInvoiceLocked:         http.StatusConflict,
	ErrCodeInvalidTransition:     http.StatusConflict,
	ErrCodeDefaultTemplateLocked: http.StatusConflict,
	ErrCodeTemplateMismatch:      http.StatusUnprocessableEntity,
	ErrCodeNoDefaultTemplate:     http.StatusUnprocessableEntity,
	ErrCodeNumberingContention:   http.StatusServiceUnavailable,

	// Rendering errors
	ErrCodeRenderTimeout:   http.StatusGatewayTimeout,
	ErrCodeRenderFailed:    http.StatusBadGateway,
	ErrCodeInvalidTemplate: http.StatusUnprocessableEntity,
	ErrCodeInvalidHTML:     http.StatusUnprocessableEntity,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
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

// LegacyErrorCodeMapping maps domain error codes to the standardized API codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":               ErrCodeNotFound,
	"ALREADY_EXISTS":          ErrCodeAlreadyExists,
	"INVALID_INPUT":           ErrCodeInvalidInput,
	"INVALID_STATE":           ErrCodeInvalidState,
	"UNAUTHORIZED":            ErrCodeUnauthorized,
	"FORBIDDEN":               ErrCodeForbidden,
	"CONCURRENCY_CONFLICT":    ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":        ErrCodeValidation,
	"BAD_REQUEST":             ErrCodeBadRequest,
	"INTERNAL_ERROR":          ErrCodeInternal,
	"INVALID_QUANTITY":        ErrCodeInvalidQuantity,
	"INVALID_PRICE":           ErrCodeInvalidPrice,
	"INVALID_AMOUNT":          ErrCodeInvalidAmount,
	"EMPTY_INVOICE":           ErrCodeEmptyInvoice,
	"INVOICE_LOCKED":          ErrCodeInvoiceLocked,
	"INVALID_TRANSITION":      ErrCodeInvalidTransition,
	"TEMPLATE_MISMATCH":       ErrCodeTemplateMismatch,
	"NO_DEFAULT_TEMPLATE":     ErrCodeNoDefaultTemplate,
	"DEFAULT_TEMPLATE_LOCKED": ErrCodeDefaultTemplateLocked,
	"NUMBERING_CONTENTION":    ErrCodeNumberingContention,
	"RENDER_TIMEOUT":          ErrCodeRenderTimeout,
	"RENDER_FAILED":           ErrCodeRenderFailed,
	"INVALID_TEMPLATE":        ErrCodeInvalidTemplate,
	"INVALID_HTML":            ErrCodeInvalidHTML,
	"INVALID_PAPER_SIZE":      ErrCodeInvalidTemplate,
}

// NormalizeErrorCode converts a domain error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}

// IsRetryable reports whether the client should retry the same request later
func IsRetryable(code string) bool {
	return code == ErrCodeNumberingContention || code == ErrCodeServiceUnavailable
}
