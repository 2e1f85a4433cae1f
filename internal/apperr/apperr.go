package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can map it to a transport status
// without string matching.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConflict
	KindStorage
)

// Error carries a kind and a human-readable message. The wrapped cause, if
// any, is preserved for errors.Is/As chains.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Validation(msg string) *Error    { return newError(KindValidation, msg) }
func Authorization(msg string) *Error { return newError(KindAuthorization, msg) }
func NotFound(msg string) *Error      { return newError(KindNotFound, msg) }
func Conflict(msg string) *Error      { return newError(KindConflict, msg) }
func Storage(msg string, cause error) *Error {
	return &Error{Kind: KindStorage, Message: msg, cause: cause}
}
func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, cause: cause}
}

// KindOf extracts the kind of err, defaulting to KindInternal for plain
// errors bubbling up from collaborators.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
