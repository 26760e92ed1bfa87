package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the machine-readable error identifier sent to clients.
type ErrorCode string

const (
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"

	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	ErrCodeMagicLinkNotFound ErrorCode = "MAGIC_LINK_NOT_FOUND"
	ErrCodeMagicLinkExpired  ErrorCode = "MAGIC_LINK_EXPIRED"
	ErrCodeMagicLinkUsed     ErrorCode = "MAGIC_LINK_USED"

	ErrCodeSlotUnavailable   ErrorCode = "SLOT_UNAVAILABLE"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeExternal ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var statusByCode = map[ErrorCode]int{
	ErrCodeValidation:        http.StatusBadRequest,
	ErrCodeInvalidInput:      http.StatusBadRequest,
	ErrCodeMissingRequired:   http.StatusBadRequest,
	ErrCodeUnauthorized:      http.StatusUnauthorized,
	ErrCodeMagicLinkExpired:  http.StatusUnauthorized,
	ErrCodeForbidden:         http.StatusForbidden,
	ErrCodeNotFound:          http.StatusNotFound,
	ErrCodeMagicLinkNotFound: http.StatusNotFound,
	ErrCodeAlreadyExists:     http.StatusConflict,
	ErrCodeMagicLinkUsed:     http.StatusConflict,
	ErrCodeSlotUnavailable:   http.StatusConflict,
	ErrCodeInvalidTransition: http.StatusConflict,
	ErrCodeRateLimitExceeded: http.StatusTooManyRequests,
	ErrCodeExternal:          http.StatusBadGateway,
	ErrCodeInternal:          http.StatusInternalServerError,
	ErrCodeDatabase:          http.StatusInternalServerError,
}

// HTTPStatus returns the response status for code. Unknown codes are 500.
func (c ErrorCode) HTTPStatus() int {
	if status, ok := statusByCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AppError is an error that is safe to show to clients. The cause is kept
// for logging and never serialized.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func AlreadyExists(resource string) *AppError {
	return New(ErrCodeAlreadyExists, fmt.Sprintf("%s already exists", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

// InvalidInput reports a malformed field. The field name is also returned in
// details so forms can highlight it.
func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason)).
		WithDetails(map[string]string{"field": field})
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field)).
		WithDetails(map[string]string{"field": field})
}

func MagicLinkNotFound() *AppError {
	return New(ErrCodeMagicLinkNotFound, "Magic link not found")
}

func MagicLinkExpired() *AppError {
	return New(ErrCodeMagicLinkExpired, "Magic link has expired")
}

func MagicLinkUsed() *AppError {
	return New(ErrCodeMagicLinkUsed, "Magic link has already been used")
}

func SlotUnavailable() *AppError {
	return New(ErrCodeSlotUnavailable, "Selected time slot is not available")
}

func InvalidTransition(from, to string) *AppError {
	return New(ErrCodeInvalidTransition, fmt.Sprintf("Cannot move session from %s to %s", from, to)).
		WithDetails(map[string]string{"from": from, "to": to})
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return New(ErrCodeDatabase, "Database error").WithCause(cause)
}

func External(service string, cause error) *AppError {
	return New(ErrCodeExternal, fmt.Sprintf("External service error: %s", service)).WithCause(cause)
}

func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the code of an AppError anywhere in err's chain, or
// ErrCodeInternal.
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries one of codes.
func HasCode(err error, codes ...ErrorCode) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return false
	}
	for _, code := range codes {
		if appErr.Code == code {
			return true
		}
	}
	return false
}
