// Package apperr defines the error taxonomy shared by the store adapters, the
// lobby service and the HTTP layer. Every user-visible failure carries a Kind,
// a stable machine-readable Code and a human-readable Message.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	Unauthorized       Kind = "UNAUTHORIZED"
	Forbidden          Kind = "FORBIDDEN"
	NotFound           Kind = "NOT_FOUND"
	InvalidInput       Kind = "INVALID_INPUT"
	Conflict           Kind = "CONFLICT"
	BackendUnavailable Kind = "BACKEND_UNAVAILABLE"
	Internal           Kind = "INTERNAL"
)

// Specialised codes. The Kind of an error carrying one of these is fixed by its constructor.
const (
	CodeInviteDisabled     = "INVITE_DISABLED"
	CodeInviteExpired      = "INVITE_EXPIRED"
	CodeInviteTokenInvalid = "INVITE_TOKEN_INVALID"
	CodeInvalidDelta       = "INVALID_DELTA"
	CodeStageTransition    = "STAGE_TRANSITION_INVALID"
	CodeUpdateConflict     = "UPDATE_CONFLICT"
	CodeSeasonCompleted    = "SEASON_COMPLETED"
)

// Error is the concrete error type carried through the service.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error whose code equals its kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Code: string(kind), Message: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// WithCode creates an error with a specialised code.
func WithCode(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Wrap attaches an underlying error. A nil err yields nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Code: string(kind), Message: msg, Err: err}
}

// KindOf returns the kind of err, or Internal for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// CodeOf returns the machine-readable code for err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return string(Internal)
}

// MessageOf returns the human-readable message for err. Errors outside the
// taxonomy are not echoed to callers.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// Is reports whether err belongs to kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
