// Package gwerrors defines the gateway's error taxonomy: a single error
// type carrying a kind, an optional database name, and an optional
// underlying cause, mapped to HTTP status codes at the transport edge.
package gwerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the category of a gateway error.
type Kind string

const (
	KindDatabaseNotFound          Kind = "DatabaseNotFound"
	KindDatabaseAlreadyExists     Kind = "DatabaseAlreadyExists"
	KindInvalidRequest            Kind = "InvalidRequest"
	KindUnauthorized              Kind = "Unauthorized"
	KindPlatformIsolationViolation Kind = "PlatformIsolationViolation"
	KindExtensionNotAvailable     Kind = "ExtensionNotAvailable"
	KindSchemaExtractionFailed    Kind = "SchemaExtractionFailed"
	KindMigrationFailed           Kind = "MigrationFailed"
	KindFunctionDeployFailed      Kind = "FunctionDeployFailed"
	KindExtensionInstallFailed    Kind = "ExtensionInstallFailed"
	KindQueryFailed               Kind = "QueryFailed"
	KindConnectionFailed          Kind = "ConnectionFailed"
	KindPoolExhausted             Kind = "PoolExhausted"
	KindInternal                  Kind = "Internal"
)

var statusByKind = map[Kind]int{
	KindDatabaseNotFound:           http.StatusNotFound,
	KindDatabaseAlreadyExists:      http.StatusConflict,
	KindInvalidRequest:             http.StatusBadRequest,
	KindUnauthorized:               http.StatusForbidden,
	KindPlatformIsolationViolation: http.StatusForbidden,
	KindExtensionNotAvailable:      http.StatusBadRequest,
	KindSchemaExtractionFailed:     http.StatusBadRequest,
	KindMigrationFailed:            http.StatusInternalServerError,
	KindFunctionDeployFailed:       http.StatusInternalServerError,
	KindExtensionInstallFailed:     http.StatusInternalServerError,
	KindQueryFailed:                http.StatusInternalServerError,
	KindConnectionFailed:           http.StatusServiceUnavailable,
	KindPoolExhausted:              http.StatusServiceUnavailable,
	KindInternal:                   http.StatusInternalServerError,
}

// Error is the gateway's concrete error type. It implements the standard
// error interface and unwraps to Cause so callers can still use
// errors.Is/errors.As against whatever produced it.
type Error struct {
	Kind     Kind
	Message  string
	Database string // optional
	Cause    error  // optional
}

func (e *Error) Error() string {
	if e.Database != "" && e.Cause != nil {
		return fmt.Sprintf("%s: %s (database=%s, cause=%s)", e.Kind, e.Message, e.Database, e.Cause)
	}
	if e.Database != "" {
		return fmt.Sprintf("%s: %s (database=%s)", e.Kind, e.Message, e.Database)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause=%s)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus maps the error's Kind to a status code per the gateway's
// error handling design. Unknown kinds map to 500.
func (e *Error) HTTPStatus() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New constructs an *Error of the given kind with no database or cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind, attaching cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithDatabase returns a copy of e with Database set, for errors raised
// before the database name was known at construction time.
func (e *Error) WithDatabase(database string) *Error {
	cp := *e
	cp.Database = database
	return &cp
}

// As reports whether err (or something it wraps) is a *Error, returning it.
func As(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// StatusCode returns the HTTP status for any error: the mapped status if
// it is (or wraps) a *Error, otherwise 500.
func StatusCode(err error) int {
	if ge, ok := As(err); ok {
		return ge.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// Envelope is the JSON error body shape returned by every HTTP endpoint.
type Envelope struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Database string `json:"database,omitempty"`
	Cause    string `json:"cause,omitempty"`
}

// ToEnvelope converts any error into the wire envelope, defaulting to the
// Internal kind when err is not a *Error.
func ToEnvelope(err error) Envelope {
	ge, ok := As(err)
	if !ok {
		return Envelope{Error: string(KindInternal), Message: err.Error()}
	}
	env := Envelope{Error: string(ge.Kind), Message: ge.Message, Database: ge.Database}
	if ge.Cause != nil {
		env.Cause = ge.Cause.Error()
	}
	return env
}
