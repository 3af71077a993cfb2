// Package apperrors defines the closed set of error kinds shared by the
// settlement pipeline. Callers branch on Kind (or the helpers below), never
// on message text.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation          Kind = "validation"
	KindStateConflict       Kind = "state_conflict"
	KindNotFound            Kind = "not_found"
	KindPrecondition        Kind = "precondition_not_met"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindProviderTransient   Kind = "provider_transient"
	KindProvider            Kind = "provider"
	KindCrypto              Kind = "crypto"
	KindInternal            Kind = "internal"
)

// Error is a tagged error variant. ProviderCode carries the provider's own
// error code verbatim when one was returned.
type Error struct {
	Kind         Kind
	Message      string
	ProviderCode string
	Retryable    bool
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match two tagged errors by kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Retryable: kind == KindProviderTransient}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Retryable: kind == KindProviderTransient, Err: err}
}

func Validation(message string) *Error    { return New(KindValidation, message) }
func StateConflict(message string) *Error { return New(KindStateConflict, message) }
func NotFound(message string) *Error      { return New(KindNotFound, message) }
func Precondition(message string) *Error  { return New(KindPrecondition, message) }

// Transient marks a transport-layer failure eligible for retry.
func Transient(message string, err error) *Error {
	return Wrap(KindProviderTransient, message, err)
}

// Provider builds a non-retryable provider business error carrying the
// provider's code.
func Provider(code, message string) *Error {
	kind := KindProvider
	if code == CodeInsufficientBalance {
		kind = KindInsufficientBalance
	}
	e := New(kind, message)
	e.ProviderCode = code
	return e
}

// CodeInsufficientBalance is the provider code for a payout exceeding the
// platform's available balance.
const CodeInsufficientBalance = "INSUFFICIENT_BALANCE"

// KindOf extracts the kind of err, or KindInternal for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether err may be retried. Untagged errors are never
// retried.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
