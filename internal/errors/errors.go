// Package errors defines the service error type shared by services, middleware
// and HTTP handlers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code classifies a ServiceError.
type Code string

const (
	CodeBadRequest        Code = "BAD_REQUEST"
	CodeValidation        Code = "VALIDATION_FAILED"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeInvalidToken      Code = "INVALID_TOKEN"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeEmptyCart         Code = "EMPTY_CART"
	CodeRateLimited       Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// ServiceError is an error carrying an HTTP status and a stable code.
type ServiceError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error with an extra detail entry.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	out := *e
	out.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		out.Details[k] = v
	}
	out.Details[key] = value
	return &out
}

// Wrap returns a copy of the error with err as its cause.
func (e *ServiceError) Wrap(err error) *ServiceError {
	out := *e
	out.Err = err
	return &out
}

func newError(code Code, status int, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// BadRequest reports a malformed request.
func BadRequest(message string) *ServiceError {
	return newError(CodeBadRequest, http.StatusBadRequest, message, nil)
}

// Validation reports an invalid field value.
func Validation(field, reason string) *ServiceError {
	return newError(CodeValidation, http.StatusBadRequest, fmt.Sprintf("%s: %s", field, reason), nil).
		WithDetails("field", field)
}

// Required reports a missing required field.
func Required(field string) *ServiceError {
	return Validation(field, "is required")
}

func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "Unauthorized"
	}
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

func InvalidToken(err error) *ServiceError {
	return newError(CodeInvalidToken, http.StatusUnauthorized, "Invalid or expired token", err)
}

func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "Forbidden"
	}
	return newError(CodeForbidden, http.StatusForbidden, message, nil)
}

// NotFound reports a missing resource. id may be empty.
func NotFound(resource, id string) *ServiceError {
	msg := resource + " not found"
	if id != "" {
		msg = fmt.Sprintf("%s %q not found", resource, id)
	}
	return newError(CodeNotFound, http.StatusNotFound, msg, nil)
}

func Conflict(message string) *ServiceError {
	return newError(CodeConflict, http.StatusConflict, message, nil)
}

// InsufficientStock reports that a record cannot cover the requested amount.
func InsufficientStock(recordID string) *ServiceError {
	return newError(CodeInsufficientStock, http.StatusConflict, "insufficient stock", nil).
		WithDetails("record_id", recordID)
}

func EmptyCart() *ServiceError {
	return newError(CodeEmptyCart, http.StatusConflict, "cart is empty", nil)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return newError(CodeRateLimited, http.StatusTooManyRequests, "Rate limit exceeded", nil).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

func Internal(message string, err error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, err)
}

// GetServiceError returns the first ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// IsCode reports whether err carries a ServiceError with the given code.
func IsCode(err error, code Code) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}

// HTTPStatus maps err to a response status, defaulting to 500.
func HTTPStatus(err error) int {
	if se := GetServiceError(err); se != nil {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}
