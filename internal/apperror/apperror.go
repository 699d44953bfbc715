// Package apperror defines the error taxonomy shared by the service and
// handler layers. Services return these; handlers map them to HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("Validation Error")
	ErrForbidden   = errors.New("forbidden")
	ErrUpstream    = errors.New("upstream failure")
	ErrTimeout     = errors.New("timeout")
	ErrPersistence = errors.New("persistence failure")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Status  int    // Optional: upstream HTTP status for ErrUpstream
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// NoData reports a lookup that found nothing, using the message as-is.
func NoData(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Upstream wraps a non-success answer from the prover (or GitHub behind it).
// The status is passed through to the client when it is a 4xx or 5xx.
func Upstream(status int, message string) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: message,
		Status:  status,
	}
}

// Timeout marks a call that ran out of time. Callers may retry.
func Timeout(message string) *AppError {
	return &AppError{
		Err:     ErrTimeout,
		Message: message,
	}
}

// Persistence reports a storage failure with guidance for the operator.
func Persistence(message string, cause error) *AppError {
	err := ErrPersistence
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrPersistence, cause)
	}
	return &AppError{
		Err:     err,
		Message: message,
	}
}
