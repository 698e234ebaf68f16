// Package domain defines the error taxonomy shared by the draft store, the publish
// coordinator and the transports built on top of them.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors, matched with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrReadOnly       = errors.New("prohibited in read-only mode")
	ErrIO             = errors.New("i/o failure")
	ErrConflict       = errors.New("live document changed since the draft was saved")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
)

// IOError reports a filesystem or storage failure for a single key.
type IOError struct {
	Op  string // open, read, write, lock, delete, list, ...
	Key string
	Err error
}

func (e *IOError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is allows errors.Is() to match against ErrIO
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// NewIOError wraps err unless it is nil.
func NewIOError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Key: key, Err: err}
}

// ValidationError carries the field-level message of a rejected request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is allows errors.Is() to match against ErrInvalidRequest
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// StatusCode maps an error to the HTTP status a transport should answer with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrReadOnly), errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
