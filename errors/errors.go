package errors

import (
	"errors"
	"net/http"
)

// New, Is and As are re-exported so callers only need this package.
var (
	New = errors.New
	Is  = errors.Is
	As  = errors.As
)

// Error taxonomy shared by every layer.
var (
	ErrUnknownRole     = errors.New("unknown role")
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrForbidden       = errors.New("insufficient permission")
	ErrServerError     = errors.New("the authorization server encountered an unexpected condition")
)

// Codes is the JSON "error" code for each sentinel.
var Codes = map[error]string{
	ErrUnknownRole:     "unknown_role",
	ErrValidation:      "invalid_request",
	ErrNotFound:        "not_found",
	ErrConflict:        "conflict",
	ErrUnauthenticated: "unauthenticated",
	ErrInvalidToken:    "invalid_token",
	ErrForbidden:       "forbidden",
	ErrServerError:     "server_error",
}

// StatusCodes is the HTTP status for each sentinel.
var StatusCodes = map[error]int{
	ErrUnknownRole:     http.StatusBadRequest,
	ErrValidation:      http.StatusBadRequest,
	ErrNotFound:        http.StatusNotFound,
	ErrConflict:        http.StatusConflict,
	ErrUnauthenticated: http.StatusUnauthorized,
	ErrInvalidToken:    http.StatusUnauthorized,
	ErrForbidden:       http.StatusForbidden,
	ErrServerError:     http.StatusInternalServerError,
}

// order matters: ValidationError unwraps to ErrValidation, so sentinels are
// matched from the most specific down.
var taxonomy = []error{
	ErrInvalidToken,
	ErrUnauthenticated,
	ErrForbidden,
	ErrUnknownRole,
	ErrValidation,
	ErrNotFound,
	ErrConflict,
}

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return "validation error: " + e.Field + " " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validation builds a ValidationError for field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Sentinel returns the taxonomy error err wraps, or ErrServerError.
func Sentinel(err error) error {
	for _, s := range taxonomy {
		if errors.Is(err, s) {
			return s
		}
	}
	return ErrServerError
}

// StatusCode maps err onto an HTTP status code.
func StatusCode(err error) int {
	return StatusCodes[Sentinel(err)]
}

// Code maps err onto the JSON error code.
func Code(err error) string {
	return Codes[Sentinel(err)]
}

// Description is the client-facing message for err. Validation errors keep
// their detail; everything else uses the sentinel text so internals never leak.
func Description(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return Sentinel(err).Error()
}
