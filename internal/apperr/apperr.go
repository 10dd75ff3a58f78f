// Package apperr classifies failures into a small set of kinds that are safe
// to expose to API clients. The wrapped cause is kept for logging only.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is the classification reported to clients.
type Kind string

const (
	KindInvalid          Kind = "invalid"
	KindNotFound         Kind = "not_found"
	KindUnauthorized     Kind = "unauthorized"
	KindPermissionDenied Kind = "permission_denied"
	KindThrottled        Kind = "throttled"
	KindStoreUnavailable Kind = "store_unavailable"
	KindUnknown          Kind = "unknown"
)

var defaultMessages = map[Kind]string{
	KindInvalid:          "invalid request",
	KindNotFound:         "not found",
	KindUnauthorized:     "no session identity",
	KindPermissionDenied: "storage permission denied",
	KindThrottled:        "storage is throttling requests, try again later",
	KindStoreUnavailable: "storage temporarily unavailable",
	KindUnknown:          "internal error",
}

// Error carries a Kind, the operation that failed, a client-safe message and
// the underlying cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Kind]
	}
	s := msg
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error without an underlying cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches kind and message to err. A nil err yields nil.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindUnknown when there is none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the client-safe message for err. Raw causes never leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		return defaultMessages[e.Kind]
	}
	return defaultMessages[KindUnknown]
}

// HTTPStatus maps a kind to the response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalid:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindThrottled:
		return http.StatusTooManyRequests
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
