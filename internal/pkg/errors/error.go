package errors

import (
	"errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    int    // business code, see codes.go
	Message string // human-readable message
	Err     error  // underlying cause, if any
	Details string
}

func (e *AppError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	case e.Details != "":
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	default:
		return fmt.Sprintf("[%d] %s", e.Code, e.Message)
	}
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code for this error
func (e *AppError) HTTPStatus() int {
	return GetHTTPStatus(e.Code)
}

// Is lets errors.Is match two AppErrors by code, so package-level sentinels
// such as biz.ErrEmptyInput compare equal to freshly built ones.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func first(details []string) string {
	if len(details) > 0 {
		return details[0]
	}
	return ""
}

// New creates a new AppError with the given code
func New(code int, details ...string) *AppError {
	return &AppError{Code: code, Message: GetMessage(code), Details: first(details)}
}

// Wrap wraps err with a code. An AppError already in the chain is returned
// as a copy (with details overridden when given) instead of being nested.
func Wrap(err error, code int, details ...string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		cp := *appErr
		if d := first(details); d != "" {
			cp.Details = d
		}
		return &cp
	}

	return &AppError{Code: code, Message: GetMessage(code), Err: err, Details: first(details)}
}

// Wrapf wraps an error with formatted details
func Wrapf(err error, code int, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Is checks if err is an AppError with the given code
func Is(err error, code int) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ExtractCode returns the business code of err, ErrInternalServer for
// anything that is not an AppError.
func ExtractCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServer
}

// GetDetails extracts error details
func GetDetails(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Details != "" {
			return appErr.Details
		}
		// internal causes are not leaked to clients
		return ""
	}
	return ""
}

func NewInternalError(details ...string) *AppError {
	return New(ErrInternalServer, details...)
}

func NewNotFoundError(resource string) *AppError {
	return New(ErrNotFound, resource)
}

func NewBadRequestError(details ...string) *AppError {
	return New(ErrBadRequest, details...)
}

// NewValidationError creates a validation error
func NewValidationError(field string) *AppError {
	return New(ErrInvalidParams, fmt.Sprintf("validation failed for field: %s", field))
}
