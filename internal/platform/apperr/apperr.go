// Package apperr defines the error kinds shared by every domain package and
// maps them onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error kinds. Domain errors wrap exactly one of these.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnavailable     = errors.New("service unavailable")
)

// Error is a domain error carrying a client-facing message and a kind.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// New returns an error of the given kind with a client-facing message.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with formatting.
func Newf(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation is shorthand for New(ErrValidation, msg).
func Validation(msg string) error { return New(ErrValidation, msg) }

// Forbidden is shorthand for New(ErrForbidden, msg).
func Forbidden(msg string) error { return New(ErrForbidden, msg) }

// Status returns the HTTP status code matching err's kind. Unknown errors
// are internal server errors.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message for err. Internal errors never
// leak their text.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if Status(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

// HTTP converts err into an *echo.HTTPError. The original error is kept as
// the internal error so the error handler can log it.
func HTTP(err error) *echo.HTTPError {
	he := echo.NewHTTPError(Status(err), Message(err))
	he.Internal = err
	return he
}
