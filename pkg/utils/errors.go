package utils

import (
	"fmt"
	"net/http"
)

// ResponseCode application error code
type ResponseCode int

const (
	CodeSuccess ResponseCode = 0

	// Request errors
	CodeInvalidParam ResponseCode = 1001
	CodeUnauthorized ResponseCode = 1002
	CodeForbidden    ResponseCode = 1003
	CodeNotFound     ResponseCode = 1004
	CodeConflict     ResponseCode = 1005

	// Business errors
	CodeInsufficientStock ResponseCode = 2001
	CodeOrderState        ResponseCode = 2002
	CodeInvalidDiscount   ResponseCode = 2003

	// Dependency errors
	CodeDependencyUnavailable ResponseCode = 3001

	// System errors
	CodeInternalError ResponseCode = 5000
)

// AppError application error structure
type AppError struct {
	Code    ResponseCode `json:"code"`
	Message string       `json:"message"`
	Err     error        `json:"-"`
}

// Error implement error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code: %d, message: %s, error: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
}

// Unwrap implement errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError create new application error
func NewError(code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewErrorf create new application error with formatted message
func NewErrorf(code ResponseCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wrap error
func WrapError(err error, code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Predefined errors
var (
	ErrInvalidParam = NewError(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized = NewError(CodeUnauthorized, "unauthorized")
	ErrForbidden    = NewError(CodeForbidden, "not enough permissions")

	ErrTenantNotFound  = NewError(CodeNotFound, "tenant not found")
	ErrProductNotFound = NewError(CodeNotFound, "product not found")
	ErrOrderNotFound   = NewError(CodeNotFound, "order not found")
	ErrUserNotFound    = NewError(CodeNotFound, "user not found")

	ErrInsufficientStock = NewError(CodeInsufficientStock, "insufficient stock")
	ErrInvalidDiscount   = NewError(CodeInvalidDiscount, "discount code is not applicable")

	ErrQueueUnavailable = NewError(CodeDependencyUnavailable, "task queue unavailable")

	ErrInternalError = NewError(CodeInternalError, "internal server error")
)

// IsAppError check if it's an application error
func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

// GetErrorCode get error code
func GetErrorCode(err error) ResponseCode {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternalError
}

// GetErrorMessage get error message
func GetErrorMessage(err error) string {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}

// HTTPStatus map an error code to the HTTP status surfaced to the caller
func (c ResponseCode) HTTPStatus() int {
	switch c {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeInsufficientStock, CodeInvalidDiscount:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeOrderState:
		return http.StatusConflict
	case CodeDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
