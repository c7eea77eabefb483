package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies application errors so transports can map them consistently.
type ErrorCode string

const (
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeConflict     ErrorCode = "CONFLICT"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeInvalidState ErrorCode = "INVALID_STATE"
	CodeUpstream     ErrorCode = "UPSTREAM_ERROR"
)

// AppError is the error type returned by domain and application code.
type AppError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Err       error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *AppError) Unwrap() error { return e.Err }

// NewValidationError reports malformed or missing input.
func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

// NewConflictError reports a conflicting write (overlap, concurrent modification).
func NewConflictError(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message}
}

// NewRetryableConflictError reports a conflict the client should retry shortly.
func NewRetryableConflictError(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message, Retryable: true}
}

// NewForbiddenError reports an actor that is not allowed to perform the operation.
func NewForbiddenError(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewInvalidStateError reports an illegal state transition.
func NewInvalidStateError(from, to string) *AppError {
	return &AppError{Code: CodeInvalidState, Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}

// NewUpstreamError reports a failing external collaborator.
func NewUpstreamError(service string, err error) *AppError {
	return &AppError{Code: CodeUpstream, Message: service + " unavailable", Err: err}
}

// AsAppError extracts an *AppError from the error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
