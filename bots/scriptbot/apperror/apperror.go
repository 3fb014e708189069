// Package apperror defines the error kinds shared by the scriptbot layers.
// Callers match kinds with errors.Is; *AppError carries the user-facing detail.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrUnavailable   = errors.New("storage unavailable")
)

// AppError wraps one of the sentinel kinds with a message and an optional field.
type AppError struct {
	Err     error
	Message string
	Field   string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Code returns a stable identifier of the error kind for logs.
func (e *AppError) Code() string {
	switch {
	case errors.Is(e.Err, ErrNotFound):
		return "not_found"
	case errors.Is(e.Err, ErrValidation):
		return "validation"
	case errors.Is(e.Err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(e.Err, ErrUnavailable):
		return "unavailable"
	}
	return "unknown"
}

func NotFound(resource string, id int64) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %d not found", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func QuotaExceeded(userID int64) *AppError {
	return &AppError{
		Err:     ErrQuotaExceeded,
		Message: fmt.Sprintf("user %d reached the bot limit", userID),
	}
}

// Unavailable wraps a driver error; the cause stays reachable through errors.Is.
func Unavailable(op string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrUnavailable, cause),
		Message: fmt.Sprintf("%s: storage unavailable: %v", op, cause),
	}
}
