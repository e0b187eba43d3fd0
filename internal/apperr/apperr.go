// Package apperr defines the application's error taxonomy and its mapping
// onto HTTP status codes, following spec §7.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an error for disposition by the HTTP boundary.
type Kind string

const (
	KindInvalidInput Kind = "INVALID_INPUT"
	KindNotFound     Kind = "NOT_FOUND"
	KindUnavailable  Kind = "UNAVAILABLE"
	KindInternal     Kind = "INTERNAL"
)

// Error is the application's single error type; every error returned across
// a package boundary should either be one of these or get wrapped into one
// at the HTTP boundary.
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

func InvalidInput(msg string) error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func InvalidInputf(format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Unavailable(msg string, err error) error {
	return &Error{Kind: KindUnavailable, Message: msg, Err: err}
}

func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// Is reports whether err (or something it wraps) has the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// StatusCode maps an error onto the HTTP status the boundary should return.
// Unrecognized errors map to 500, never panic the process.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindInvalidInput:
			return http.StatusBadRequest
		case KindNotFound:
			return http.StatusNotFound
		case KindUnavailable:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
