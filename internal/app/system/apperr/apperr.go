// Package apperr defines the typed error taxonomy shared by the
// membership, submission, and progress services.
//
// Kinds map one-to-one onto caller outcomes:
//
//	NotFound   - an entity id did not resolve
//	Forbidden  - the actor lacks the role/membership required
//	Conflict   - duplicate membership/request, capacity, double grade
//	Validation - malformed input (capacity, grade range, category)
//	Storage    - file persist/delete failure
//
// Integrity repairs are corrective, not exceptional, and are never
// reported through this package.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindForbidden
	KindConflict
	KindValidation
	KindStorage
)

// Error carries a kind, a caller-facing message, and an optional wrapped
// cause kept for logs only.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Message returns the caller-facing message without the cause.
func (e *Error) Message() string { return e.msg }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match against the kind sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.msg == "" && t.kind == e.kind
}

// Kind sentinels for errors.Is checks. They carry no message and match
// any Error of the same kind.
var (
	NotFound   = &Error{kind: KindNotFound}
	Forbidden  = &Error{kind: KindForbidden}
	Conflict   = &Error{kind: KindConflict}
	Validation = &Error{kind: KindValidation}
	Storage    = &Error{kind: KindStorage}
)

// NewNotFound builds a NotFound error with a formatted message.
func NewNotFound(format string, args ...any) *Error {
	return &Error{kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

// NewForbidden builds a Forbidden error with a formatted message.
func NewForbidden(format string, args ...any) *Error {
	return &Error{kind: KindForbidden, msg: fmt.Sprintf(format, args...)}
}

// NewConflict builds a Conflict error with a formatted message.
func NewConflict(format string, args ...any) *Error {
	return &Error{kind: KindConflict, msg: fmt.Sprintf(format, args...)}
}

// NewValidation builds a Validation error with a formatted message.
func NewValidation(format string, args ...any) *Error {
	return &Error{kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

// NewStorage wraps a storage-layer failure.
func NewStorage(cause error, format string, args ...any) *Error {
	return &Error{kind: KindStorage, msg: fmt.Sprintf(format, args...), cause: cause}
}

// Wrap attaches a cause to a taxonomy error without changing its kind
// or message.
func (e *Error) Wrap(cause error) *Error {
	return &Error{kind: e.kind, msg: e.msg, cause: cause}
}

// HTTPStatus maps an error to the status code the features layer should
// respond with. Non-taxonomy errors map to 500.
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindStorage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the caller-facing message for err, or a generic
// fallback for unclassified errors.
func UserMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.msg != "" {
		return ae.msg
	}
	return "internal error"
}
