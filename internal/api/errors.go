package api

import (
	"errors"
	"fmt"
)

// Kind classifies a failed remote call.
type Kind int

const (
	KindUnknown Kind = iota
	KindDuplicateAccount
	KindInvalidCredentials
	KindValidationFailed
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindDuplicateAccount:
		return "duplicate_account"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindValidationFailed:
		return "validation_failed"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrUnknown            = &Error{Kind: KindUnknown}
	ErrDuplicateAccount   = &Error{Kind: KindDuplicateAccount}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrValidationFailed   = &Error{Kind: KindValidationFailed}
	ErrNotFound           = &Error{Kind: KindNotFound}
)

// Error is the only error type returned by Client methods.
type Error struct {
	Op      string // e.g. "create_event"
	Kind    Kind
	Status  int    // HTTP status, 0 for transport/decode failures
	Message string // server-provided reason, if any
	Err     error  // underlying transport or decode error
}

// NewError builds an Error for failures detected before a request is sent.
func NewError(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Message: msg}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return "api: " + e.Kind.String()
	}
	s := fmt.Sprintf("api: %s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		s += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, which makes the sentinels work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of err; non-API errors are KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Reason returns the server-provided message carried by err, if any.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
