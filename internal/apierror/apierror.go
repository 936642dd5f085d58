// Package apierror provides the error taxonomy of the order core and the
// standardized response envelopes for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable class of a failure.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindIllegalTransition Kind = "illegal_transition"
	KindAlreadyOpen       Kind = "already_open"
	KindAlreadyClosed     Kind = "already_closed"
	KindSessionClosed     Kind = "session_closed"
	KindNoOpenSession     Kind = "no_open_session"
	KindNotFound          Kind = "not_found"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindRateLimited       Kind = "rate_limited"
	KindInternal          Kind = "internal"
)

// Error is a domain failure reported synchronously to the caller.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Detail }

// Is matches any *Error of the same kind, so errors.Is(err, apierror.ErrNotFound)
// works regardless of the detail text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrIllegalTransition = &Error{Kind: KindIllegalTransition}
	ErrAlreadyOpen       = &Error{Kind: KindAlreadyOpen}
	ErrAlreadyClosed     = &Error{Kind: KindAlreadyClosed}
	ErrSessionClosed     = &Error{Kind: KindSessionClosed}
	ErrNoOpenSession     = &Error{Kind: KindNoOpenSession}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrForbidden         = &Error{Kind: KindForbidden}
)

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

func IllegalTransition(format string, args ...any) *Error {
	return newf(KindIllegalTransition, format, args...)
}

func AlreadyOpen(format string, args ...any) *Error {
	return newf(KindAlreadyOpen, format, args...)
}

func AlreadyClosed(format string, args ...any) *Error {
	return newf(KindAlreadyClosed, format, args...)
}

func SessionClosed(format string, args ...any) *Error {
	return newf(KindSessionClosed, format, args...)
}

func NoOpenSession(format string, args ...any) *Error {
	return newf(KindNoOpenSession, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newf(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

// KindOf returns the kind of err, or KindInternal for anything that is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a kind to its response code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindIllegalTransition, KindAlreadyOpen, KindAlreadyClosed, KindSessionClosed, KindNoOpenSession:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail"`
}

func New(kind Kind, msg string) *APIError {
	return &APIError{Kind: kind, Detail: msg}
}

// FromError builds the envelope for err. Internal errors never expose their text.
func FromError(err error) *APIError {
	var e *Error
	if errors.As(err, &e) {
		return &APIError{Kind: e.Kind, Detail: e.Detail}
	}
	return &APIError{Kind: KindInternal, Detail: "Error interno del servidor"}
}

// ValidationError wraps multiple field errors.
type ValidationError struct {
	Kind   Kind              `json:"kind"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Kind: KindValidation, Detail: "Error de validacion", Fields: fields}
}
