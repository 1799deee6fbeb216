// Package errors defines the error taxonomy shared by the repositories,
// services, and extraction strategies. Every error that crosses a package
// boundary carries an ErrorCode so callers can branch on category without
// string matching, and the ingestion runner can decide whether a failed job
// is worth retrying.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode names a category of failure.
type ErrorCode string

const (
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeConflict   ErrorCode = "conflict"
	ErrCodeValidation ErrorCode = "validation"
	ErrCodeForeignKey ErrorCode = "foreign_key"
	ErrCodeInternal   ErrorCode = "internal"
	ErrCodeTimeout    ErrorCode = "timeout"
	ErrCodeCanceled   ErrorCode = "canceled"
)

// AppError is a categorized error. It wraps an optional cause, so errors.Is
// and errors.As see through it, and may name the field that triggered a
// validation or conflict failure.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Field   string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New builds an AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf builds an AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an existing error. Returns nil when
// err is nil so call sites can wrap unconditionally.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool   { return isCode(err, ErrCodeNotFound) }
func IsConflict(err error) bool   { return isCode(err, ErrCodeConflict) }
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }
func IsForeignKey(err error) bool { return isCode(err, ErrCodeForeignKey) }
func IsInternal(err error) bool   { return isCode(err, ErrCodeInternal) }
func IsTimeout(err error) bool    { return isCode(err, ErrCodeTimeout) }
func IsCanceled(err error) bool   { return isCode(err, ErrCodeCanceled) }

// GetCode extracts the ErrorCode from anywhere in err's chain. Empty when
// no AppError is present.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField extracts the offending field name, when one was recorded.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
