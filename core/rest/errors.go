package rest

import (
	"fmt"
	"net/http"
)

// Error is the error kind raised by the request pipeline. It carries the
// client-facing detail message and the HTTP status the uniform error envelope
// will be written with. Anything else bubbling out of a handler is treated as
// unclassified and mapped to status 500 by the request wrapper.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

// ValidationError flags a malformed request: bad shape, id mismatch,
// disallowed method call, unsupported relationship mutation. Status 400.
func ValidationError(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusBadRequest, Detail: fmt.Sprintf(format, args...)}
}

// ValidationErrorStatus is a ValidationError with a caller-specified status,
// used for the 403 classified relationship mutation failures.
func ValidationErrorStatus(status int, format string, args ...interface{}) *Error {
	return &Error{Status: status, Detail: fmt.Sprintf(format, args...)}
}

// NotFoundError flags a referenced instance or id that does not exist. Status 404.
func NotFoundError(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusNotFound, Detail: fmt.Sprintf(format, args...)}
}

// GenericError flags a storage-layer constraint violation or an otherwise
// unclassified failure during a write. It carries the underlying message.
func GenericError(format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusInternalServerError, Detail: fmt.Sprintf(format, args...)}
}

// ConstraintError is returned by storage implementations when a commit or an
// insert violates a database constraint, for example a duplicate key. The
// resource handler surfaces the underlying message as a GenericError.
type ConstraintError struct {
	Err error
}

func (e *ConstraintError) Error() string {
	return e.Err.Error()
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}
