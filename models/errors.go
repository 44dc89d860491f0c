package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeTimeout           = "SCRAPE_TIMEOUT"
	ErrCodeNavigation        = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash      = "BROWSER_CRASH"
	ErrCodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	ErrCodeNoProducts        = "NO_PRODUCTS_FOUND"
	ErrCodeSinkFailed        = "SINK_FAILED"
	ErrCodeActionFailed      = "ACTION_FAILED"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CatalogError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type CatalogError struct {
	Code    string
	Message string
	Err     error
}

func (e *CatalogError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// NewCatalogError creates a new CatalogError.
func NewCatalogError(code, message string, err error) *CatalogError {
	return &CatalogError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *CatalogError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
