// Package errs defines the failure taxonomy shared by every sharing workflow.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnauthenticated         Kind = "unauthenticated"
	KindNotFound                Kind = "not_found"
	KindAlreadyExists           Kind = "already_exists"
	KindAlreadyUsed             Kind = "already_used"
	KindExpired                 Kind = "expired"
	KindEmailMismatch           Kind = "email_mismatch"
	KindInsufficientPermissions Kind = "insufficient_permissions"
	KindInvalidCode             Kind = "invalid_code"
	KindTooManyAttempts         Kind = "too_many_attempts"
	KindRateLimited             Kind = "rate_limited"
	KindAlreadyPending          Kind = "already_pending"
	KindInvariantViolation      Kind = "invariant_violation"
	KindInvalidArgument         Kind = "invalid_argument"
)

// Error is a typed failure with a caller-safe reason.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return e.Reason
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrExpired)
// holds for every expired failure regardless of its reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthenticated         = &Error{Kind: KindUnauthenticated, Reason: "authentication required"}
	ErrNotFound                = &Error{Kind: KindNotFound, Reason: "not found"}
	ErrAlreadyExists           = &Error{Kind: KindAlreadyExists, Reason: "already exists"}
	ErrAlreadyUsed             = &Error{Kind: KindAlreadyUsed, Reason: "already used"}
	ErrExpired                 = &Error{Kind: KindExpired, Reason: "expired"}
	ErrEmailMismatch           = &Error{Kind: KindEmailMismatch, Reason: "email does not match"}
	ErrInsufficientPermissions = &Error{Kind: KindInsufficientPermissions, Reason: "insufficient permissions"}
	ErrInvalidCode             = &Error{Kind: KindInvalidCode, Reason: "invalid code"}
	ErrTooManyAttempts         = &Error{Kind: KindTooManyAttempts, Reason: "too many attempts"}
	ErrRateLimited             = &Error{Kind: KindRateLimited, Reason: "rate limited"}
	ErrAlreadyPending          = &Error{Kind: KindAlreadyPending, Reason: "request already pending"}
	ErrInvariantViolation      = &Error{Kind: KindInvariantViolation, Reason: "invariant violation"}
	ErrInvalidArgument         = &Error{Kind: KindInvalidArgument, Reason: "invalid argument"}
)

func New(kind Kind, reason string) error {
	return &Error{Kind: kind, Reason: reason}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// KindOf returns the taxonomy kind of err, or "" for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
