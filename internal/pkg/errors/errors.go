// Package errors provides structured application errors for AgriTrace.
//
// An AppError carries a machine-readable code, an HTTP status and optional
// params. The ErrorHandler middleware renders it with the request id; clients
// own the wording.
//
// Import Path: agritrace.io/agritrace/internal/pkg/errors
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound marks a lookup of an entity that does not exist.
var ErrNotFound = errors.New("not found")

// AppError is an error with a code and the HTTP status it maps to.
type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Params     map[string]interface{} `json:"params,omitempty"`
	Err        error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithParams attaches params for client-side interpolation. Empty params
// leave e untouched.
func (e *AppError) WithParams(params map[string]interface{}) *AppError {
	if e == nil || len(params) == 0 {
		return e
	}
	e.Params = params
	return e
}

// New creates an AppError.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap creates an AppError around err.
func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// IsAppError returns the first AppError in err's chain.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// BadRequest creates a 400 error.
func BadRequest(code, message string) *AppError {
	return New(code, message, http.StatusBadRequest)
}

// Unauthorized creates a 401 error.
func Unauthorized(code, message string) *AppError {
	return New(code, message, http.StatusUnauthorized)
}

// Forbidden creates a 403 error.
func Forbidden(code, message string) *AppError {
	return New(code, message, http.StatusForbidden)
}

// Internal creates a 500 error.
func Internal(code, message string) *AppError {
	return New(code, message, http.StatusInternalServerError)
}

// Audit API errors. The params keys match the route parameter names so
// clients can point at the offending segment.

// ErrAuditEntityTypeInvalidf reports a malformed entity type path segment.
func ErrAuditEntityTypeInvalidf(entityType string) *AppError {
	return BadRequest(CodeAuditEntityTypeBad, "invalid audit entity type").
		WithParams(map[string]interface{}{"tipoEntidad": entityType})
}

// ErrAuditEntityIDInvalidf reports a malformed entity id path segment.
func ErrAuditEntityIDInvalidf(raw string, err error) *AppError {
	return Wrap(err, CodeAuditEntityIDBad, "invalid audit entity id", http.StatusBadRequest).
		WithParams(map[string]interface{}{"entidadId": raw})
}

// ErrAuditQueryFailedf wraps a store failure while reading audit data.
func ErrAuditQueryFailedf(err error) *AppError {
	return Wrap(err, CodeAuditQueryFailed, "failed to read audit events", http.StatusInternalServerError)
}

// ErrTenantRequired is returned when a tenant-scoped query has no tenant.
func ErrTenantRequired() *AppError {
	return Forbidden(CodeTenantRequired, "caller is not bound to a tenant")
}
