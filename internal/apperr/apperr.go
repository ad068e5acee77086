// Package apperr implements the error taxonomy feed handlers translate into
// HTTP responses: Auth, NotFound, BadRequest, Upstream, Storage, Internal.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, client-facing error identifier. It is never a stack
// trace and never wraps internal detail.
type Code string

const (
	CodeAuth       Code = "AuthRequired"
	CodeNotFound   Code = "NotFound"
	CodeBadRequest Code = "InvalidRequest"
	CodeUpstream   Code = "UpstreamError"
	CodeStorage    Code = "StorageError"
	CodeInternal   Code = "InternalError"
)

// Error is a taxonomy-tagged error carrying the HTTP status it maps to and
// a message safe to return to the client.
type Error struct {
	Code    Code
	Status  int
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

func newErr(code Code, status int, message string, cause error) *Error {
	return &Error{Code: code, Status: status, Message: message, cause: cause}
}

// Auth wraps an authentication failure (missing/invalid bearer token).
func Auth(message string) *Error {
	return newErr(CodeAuth, http.StatusUnauthorized, message, nil)
}

// NotFound wraps an unknown-resource failure (e.g. unrecognized feed URI).
func NotFound(message string) *Error {
	return newErr(CodeNotFound, http.StatusNotFound, message, nil)
}

// BadRequest wraps a malformed-input failure.
func BadRequest(message string) *Error {
	return newErr(CodeBadRequest, http.StatusBadRequest, message, nil)
}

// Upstream wraps a failure calling the upstream protocol API that survived
// one re-authentication retry.
func Upstream(message string, cause error) *Error {
	return newErr(CodeUpstream, http.StatusInternalServerError, message, cause)
}

// Storage wraps a database failure.
func Storage(message string, cause error) *Error {
	return newErr(CodeStorage, http.StatusInternalServerError, message, cause)
}

// Internal wraps any other unexpected failure.
func Internal(message string, cause error) *Error {
	return newErr(CodeInternal, http.StatusInternalServerError, message, cause)
}

// As extracts an *Error from err if one is anywhere in its chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusAndCode returns the HTTP status and code string to use for err,
// defaulting to 500/InternalError for errors that never went through this
// package.
func StatusAndCode(err error) (int, Code) {
	if e, ok := As(err); ok {
		return e.Status, e.Code
	}
	return http.StatusInternalServerError, CodeInternal
}
