package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that need to map it to a response.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindLocked
	KindNotFound
	KindConflict
	KindNotImplemented
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindLocked:
		return "locked"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindNotImplemented:
		return "not_implemented"
	default:
		return "internal"
	}
}

// Error is the typed error returned by services.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNotImplemented is returned by operations that exist on the API surface but have no behavior yet.
var ErrNotImplemented = &Error{Kind: KindNotImplemented, Message: "operation not implemented"}

func newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) error {
	return newf(KindValidation, format, args...)
}

func Unauthorized(format string, args ...interface{}) error {
	return newf(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...interface{}) error {
	return newf(KindForbidden, format, args...)
}

func Locked(format string, args ...interface{}) error {
	return newf(KindLocked, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newf(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return newf(KindConflict, format, args...)
}

// Wrap marks err as an infrastructure fault. Typed errors pass through untouched
// so a validation failure raised inside a transaction keeps its kind.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf reports the kind of err. Untyped errors are infrastructure faults.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindLocked:
		return http.StatusLocked
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage hides infrastructure detail from API clients.
func PublicMessage(err error) string {
	var typed *Error
	if errors.As(err, &typed) && typed.Kind != KindInternal {
		return typed.Message
	}
	return "internal server error"
}
