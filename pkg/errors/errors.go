// Package errors carries the application error codes shared by the HTTP
// layer and the fulfillment worker. A code decides the HTTP status, the
// public message, and whether redelivery may help.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeRateLimit    Code = "RATE_LIMITED"

	// Business rejections of an order request.
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeNotStocked        Code = "NOT_STOCKED"
	CodePriceMismatch     Code = "PRICE_MISMATCH"

	CodeInternal   Code = "INTERNAL_ERROR"
	CodeDependency Code = "DEPENDENCY_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

// client errors are final and never expose details unless listed in
// withDetails.
func client(status int, msg string) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: msg}
}

func transient(status int, msg string) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: msg, Retryable: true}
}

func withDetails(m Metadata) Metadata {
	m.DetailsAllowed = true
	return m
}

var registry = map[Code]Metadata{
	CodeValidation:        withDetails(client(http.StatusBadRequest, "validation failed")),
	CodeUnauthorized:      client(http.StatusUnauthorized, "authentication required"),
	CodeForbidden:         client(http.StatusForbidden, "access denied"),
	CodeNotFound:          client(http.StatusNotFound, "resource not found"),
	CodeConflict:          client(http.StatusConflict, "conflict detected"),
	CodeInsufficientStock: withDetails(client(http.StatusUnprocessableEntity, "insufficient stock")),
	CodeNotStocked:        withDetails(client(http.StatusUnprocessableEntity, "item not stocked by store")),
	CodePriceMismatch:     withDetails(client(http.StatusUnprocessableEntity, "quoted price does not match catalog")),
	CodeInternal:          transient(http.StatusInternalServerError, "internal server error"),
	CodeDependency:        withDetails(transient(http.StatusServiceUnavailable, "dependency unavailable")),
	CodeRateLimit:         transient(http.StatusTooManyRequests, "too many requests"),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if m, ok := registry[code]; ok {
		return m
	}
	return registry[CodeInternal]
}

// Error is a coded application error. The zero value is not useful; build
// one with New, Newf or Wrap.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf is CodeInternal for untyped errors.
func CodeOf(err error) Code {
	return As(err).Code()
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return As(err) != nil && CodeOf(err) == code
}

// IsRetryable reports whether redelivering the work that produced err may
// succeed. Untyped errors count as retryable.
func IsRetryable(err error) bool {
	return err != nil && MetadataFor(CodeOf(err)).Retryable
}
