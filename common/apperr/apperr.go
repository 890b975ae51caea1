// Package apperr defines the closed set of failure kinds the gallery core
// reports. Every operation returns one of these instead of an ad-hoc error,
// so callers can branch on the kind and the HTTP glue can map it to a status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags an Error with its failure category.
type Kind int

const (
	// KindNotFound means a referenced nametag, idtag, or blob is absent.
	KindNotFound Kind = iota + 1
	// KindConflict means a nametag is already claimed by a different idtag.
	KindConflict
	// KindRateLimited means a rename count or frequency policy was violated.
	KindRateLimited
	// KindBadInput means the caller supplied invalid data, e.g. a declared
	// file extension that does not match the declared MIME type.
	KindBadInput
	// KindForbidden means a name-based authorization check failed.
	KindForbidden
	// KindStorage means the underlying store or filesystem malfunctioned.
	// Never auto-retried, never treated as a caller mistake.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindBadInput:
		return "bad_input"
	case KindForbidden:
		return "forbidden"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is a tagged error carrying a kind, a message, and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the kind to the status code the glue layer responds with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindBadInput:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// NotFound reports an absent nametag, idtag, or blob.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a nametag already claimed by a different idtag.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// RateLimited reports a rename policy violation.
func RateLimited(format string, args ...any) *Error {
	return &Error{Kind: KindRateLimited, Message: fmt.Sprintf(format, args...)}
}

// BadInput reports invalid caller-supplied data.
func BadInput(format string, args ...any) *Error {
	return &Error{Kind: KindBadInput, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports a failed authorization check.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps an underlying I/O or store failure.
func Storage(err error, format string, args ...any) *Error {
	return &Error{Kind: KindStorage, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from err, or 0 when err is not a tagged Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsNotFound reports whether err is tagged KindNotFound.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is tagged KindConflict.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsRateLimited reports whether err is tagged KindRateLimited.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }

// IsBadInput reports whether err is tagged KindBadInput.
func IsBadInput(err error) bool { return KindOf(err) == KindBadInput }

// IsStorage reports whether err is tagged KindStorage.
func IsStorage(err error) bool { return KindOf(err) == KindStorage }
