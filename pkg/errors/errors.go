// Package errors defines the sentinel errors shared by the query platform and
// an AppError type that pairs a sentinel with a human-readable message and an
// HTTP status code.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Compiler errors.
	ErrMalformedExpression = errors.New("malformed expression")
	ErrUnsupportedEscape   = errors.New("unsupported escape")

	// Composer errors.
	ErrAmbiguousSelector     = errors.New("ambiguous selector")
	ErrInternalInconsistency = errors.New("internal inconsistency")
	ErrUnsupportedOperation  = errors.New("unsupported operation")
	ErrNoSuchRow             = errors.New("no such row")
	ErrResultSetClosed       = errors.New("result set closed")

	ErrInvalidInput  = errors.New("invalid input")
	ErrUnknownSource = errors.New("unknown source")
	ErrInternal      = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Is and As re-export the standard library helpers so callers importing this
// package under the name errors keep access to them.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrMalformedExpression),
		errors.Is(err, ErrUnsupportedEscape),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnknownSource):
		return http.StatusBadRequest
	case errors.Is(err, ErrAmbiguousSelector):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
