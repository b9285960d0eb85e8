package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of application error
type ErrorCode string

const (
	ErrValidation            ErrorCode = "VALIDATION_ERROR"
	ErrSchedulingConflict    ErrorCode = "SCHEDULING_CONFLICT"
	ErrInvalidTransition     ErrorCode = "INVALID_TRANSITION"
	ErrImmutableRecord       ErrorCode = "IMMUTABLE_RECORD"
	ErrNotFound              ErrorCode = "NOT_FOUND"
	ErrUnauthorized          ErrorCode = "UNAUTHORIZED"
	ErrForbidden             ErrorCode = "FORBIDDEN"
	ErrCannotCancelCompleted ErrorCode = "CANNOT_CANCEL_COMPLETED"
	ErrAlreadyCancelled      ErrorCode = "ALREADY_CANCELLED"
	ErrInternal              ErrorCode = "INTERNAL_ERROR"
)

// AppError represents an application error. Details carries structured
// diagnostic data returned to the caller: field errors for validation
// failures, the conflicting appointment set for scheduling conflicts.
type AppError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error code to the response status
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrValidation, ErrCannotCancelCompleted, ErrAlreadyCancelled,
		ErrInvalidTransition, ErrImmutableRecord:
		return http.StatusBadRequest
	case ErrSchedulingConflict:
		return http.StatusConflict
	case ErrNotFound:
		return http.StatusNotFound
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// AsAppError unwraps err into the *AppError in its chain, or wraps it as an
// internal error so callers always get a renderable error.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

func Validation(message string, fields interface{}) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Details: fields,
	}
}

// SchedulingConflict carries the full set of overlapping appointments so the
// caller can render every conflict, not just the first.
func SchedulingConflict(conflicts interface{}) *AppError {
	return &AppError{
		Code:    ErrSchedulingConflict,
		Message: "requested time slot conflicts with existing appointments",
		Details: conflicts,
	}
}

func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("cannot transition appointment from %s to %s", from, to),
		Details: map[string]string{"current_status": from, "requested_status": to},
	}
}

func ImmutableRecord(status string) *AppError {
	return &AppError{
		Code:    ErrImmutableRecord,
		Message: fmt.Sprintf("appointment in terminal status %s cannot be modified", status),
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: message,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func CannotCancelCompleted() *AppError {
	return &AppError{
		Code:    ErrCannotCancelCompleted,
		Message: "completed appointments cannot be cancelled",
	}
}

func AlreadyCancelled() *AppError {
	return &AppError{
		Code:    ErrAlreadyCancelled,
		Message: "appointment is already cancelled",
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}
