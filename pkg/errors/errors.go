package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// StatusClientClosedRequest is reported when the caller went away before the
// request finished. Nothing reads the response.
const StatusClientClosedRequest = 499

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
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

// Is matches any AppError carrying the same code, so callers can write
// errors.Is(err, errors.ErrStoreBusyValue).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// HTTPStatus maps the error code onto a transport status.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrUnauthenticated, ErrTokenExpired:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrConflict:
		return http.StatusConflict
	case ErrStoreBusy:
		return http.StatusServiceUnavailable
	case ErrUpstream:
		return http.StatusBadGateway
	case ErrCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may retry the same request later.
func (e *AppError) Retryable() bool {
	return e.Code == ErrStoreBusy || e.Code == ErrUpstream
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthenticated
	ErrForbidden
	ErrInternal
	ErrTokenExpired
	ErrConflict
	ErrStoreBusy
	ErrUpstream
	ErrCanceled
)

// Sentinels for errors.Is comparisons.
var (
	ErrNotFoundValue     = &AppError{Code: ErrNotFound}
	ErrForbiddenValue    = &AppError{Code: ErrForbidden}
	ErrStoreBusyValue    = &AppError{Code: ErrStoreBusy}
	ErrConflictValue     = &AppError{Code: ErrConflict}
	ErrBadRequestValue   = &AppError{Code: ErrBadRequest}
	ErrUpstreamValue     = &AppError{Code: ErrUpstream}
	ErrTokenExpiredValue = &AppError{Code: ErrTokenExpired}
	ErrCanceledValue     = &AppError{Code: ErrCanceled}
)

// NotFoundOrForbidden is returned when a resource is missing or belongs to
// someone else. Both cases share one message on purpose.
func NotFoundOrForbidden(resource string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found or access denied", resource),
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Unauthenticated(message string, err error) *AppError {
	return &AppError{
		Code:    ErrUnauthenticated,
		Message: message,
		Err:     err,
	}
}

func TokenExpired(err error) *AppError {
	return &AppError{
		Code:    ErrTokenExpired,
		Message: "token expired",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

func StoreBusy(err error) *AppError {
	return &AppError{
		Code:    ErrStoreBusy,
		Message: "store busy, retry later",
		Err:     err,
	}
}

func Upstream(service string, err error) *AppError {
	return &AppError{
		Code:    ErrUpstream,
		Message: fmt.Sprintf("%s unavailable", service),
		Err:     err,
	}
}

func Canceled(err error) *AppError {
	return &AppError{
		Code:    ErrCanceled,
		Message: "request canceled",
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// As extracts the AppError from err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus returns the status for any error; unknown errors are 500.
func HTTPStatus(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.HTTPStatus()
	}
	if stderrors.Is(err, context.Canceled) {
		return StatusClientClosedRequest
	}
	return http.StatusInternalServerError
}
