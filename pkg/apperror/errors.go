package apperror

import (
	"errors"
	"net/http"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// Common errors
var (
	ErrNotFound           = &AppError{Code: http.StatusNotFound, Message: "Resource not found"}
	ErrUnauthorized       = &AppError{Code: http.StatusUnauthorized, Message: "Unauthorized"}
	ErrForbidden          = &AppError{Code: http.StatusForbidden, Message: "Forbidden"}
	ErrBadRequest         = &AppError{Code: http.StatusBadRequest, Message: "Bad request"}
	ErrInternalServer     = &AppError{Code: http.StatusInternalServerError, Message: "Internal server error"}
	ErrConflict           = &AppError{Code: http.StatusConflict, Message: "Resource already exists"}
	ErrInvalidCredentials = &AppError{Code: http.StatusUnauthorized, Message: "Invalid email or password"}
)

// Reconciliation pipeline errors. These are sentinels so the orchestrator
// and its callers can branch with errors.Is.
var (
	// ErrSessionExpired: the pending transaction is missing or past its
	// TTL. The user restarts checkout; nothing was charged here.
	ErrSessionExpired = &AppError{Code: http.StatusGone, Message: "Checkout session expired, please start again"}
	// ErrPaymentDeclined: the gateway refused the payment. Terminal; no
	// document is ever created.
	ErrPaymentDeclined = &AppError{Code: http.StatusPaymentRequired, Message: "Payment was declined"}
	// ErrPaymentAmbiguous: the commit outcome is unknown (timeout or
	// transport failure). Must be resolved with a status query, never a
	// blind retry.
	ErrPaymentAmbiguous = &AppError{Code: http.StatusAccepted, Message: "Payment status unconfirmed, we will follow up"}
	// ErrDocumentBuild: the deterministic builder refused its inputs.
	// Unreachable in a correct deployment; treated as a bug, not retried.
	ErrDocumentBuild = &AppError{Code: http.StatusInternalServerError, Message: "Fiscal document could not be built"}
	// ErrTaxSubmissionTransient: the authority was unreachable or asked
	// us to come back later. Retried with backoff, bounded.
	ErrTaxSubmissionTransient = &AppError{Code: http.StatusServiceUnavailable, Message: "Tax authority temporarily unavailable"}
	// ErrTaxSubmissionRejected: the authority rejected the document
	// content. Permanent until corrected; never resubmitted unchanged.
	ErrTaxSubmissionRejected = &AppError{Code: http.StatusUnprocessableEntity, Message: "Fiscal document rejected by tax authority"}
)

// NewAppError creates a new application error
func NewAppError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(fieldErrors []FieldError) *AppError {
	return &AppError{
		Code:    http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Errors:  fieldErrors,
	}
}

// NewNotFoundError creates a not found error with a custom message
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: resource + " not found",
	}
}

// NewBadRequestError creates a bad request error with a custom message
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
	}
}

// TransientSubmission wraps a gateway failure that is safe to retry later
func TransientSubmission(detail string) *AppError {
	return &AppError{Code: ErrTaxSubmissionTransient.Code, Message: ErrTaxSubmissionTransient.Message + ": " + detail}
}

// RejectedSubmission wraps the authority's rejection reason
func RejectedSubmission(reason string) *AppError {
	return &AppError{Code: ErrTaxSubmissionRejected.Code, Message: ErrTaxSubmissionRejected.Message + ": " + reason}
}

// IsTransientSubmission reports whether err is a retryable submission failure
func IsTransientSubmission(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrTaxSubmissionTransient.Code
}

// IsRejectedSubmission reports whether err is a permanent content rejection
func IsRejectedSubmission(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrTaxSubmissionRejected.Code
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError converts an error to AppError if possible
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: err.Error(),
	}
}
