// Package errs defines the error kinds shared by the delivery core and the
// transports that surface them.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller.
type Kind string

const (
	KindInternal          Kind = "internal"
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindTransientDelivery Kind = "transient_delivery"
)

// Kinded is implemented by every error that carries a Kind.
type Kinded interface {
	error
	Kind() Kind
}

// Error is a coded application error.
type Error struct {
	kind    Kind
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Unwrap() error { return e.err }

// Message returns the message without the wrapped cause, suitable for clients.
func (e *Error) Message() string { return e.message }

// Validation reports a malformed or incomplete request.
func Validation(format string, args ...any) error {
	return &Error{kind: KindValidation, message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing thread, group or user.
func NotFound(format string, args ...any) error {
	return &Error{kind: KindNotFound, message: fmt.Sprintf(format, args...)}
}

// Conflict reports a uniqueness violation.
func Conflict(format string, args ...any) error {
	return &Error{kind: KindConflict, message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) error {
	return &Error{kind: KindInternal, message: message, err: cause}
}

// KindOf returns the kind of err, or KindInternal if it carries none.
func KindOf(err error) Kind {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns a message safe to send to a client. Internal errors
// are collapsed to a generic text.
func PublicMessage(err error) string {
	var k Kinded
	if !errors.As(err, &k) || k.Kind() == KindInternal {
		return "internal error"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return k.Error()
}
