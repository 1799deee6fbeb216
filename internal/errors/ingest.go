package errors

import "fmt"

const (
	// ErrCodeRetryable indicates a transient failure (network error, timeout,
	// upstream 5xx or rate limit) that a later attempt may succeed on.
	ErrCodeRetryable ErrorCode = "retryable"
	// ErrCodeContent indicates the fetched resource was received but could not
	// be used: missing page, unparseable body, or an unexpected document shape.
	// Retrying will not help until the upstream content changes.
	ErrCodeContent ErrorCode = "content"
	// ErrCodePolicy indicates a fetch was refused by crawl policy: a host
	// outside the allowlist, a non-HTTPS URL, or an exceeded depth limit.
	ErrCodePolicy ErrorCode = "policy"
)

// Retryable creates a new Retryable error.
func Retryable(message string) *AppError {
	return &AppError{
		Code:    ErrCodeRetryable,
		Message: message,
	}
}

// Retryablef creates a new Retryable error with formatted message.
func Retryablef(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeRetryable,
		Message: fmt.Sprintf(format, args...),
	}
}

// Content creates a new Content error.
func Content(message string) *AppError {
	return &AppError{
		Code:    ErrCodeContent,
		Message: message,
	}
}

// Contentf creates a new Content error with formatted message.
func Contentf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeContent,
		Message: fmt.Sprintf(format, args...),
	}
}

// Policy creates a new Policy error.
func Policy(message string) *AppError {
	return &AppError{
		Code:    ErrCodePolicy,
		Message: message,
	}
}

// Policyf creates a new Policy error with formatted message.
func Policyf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodePolicy,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsRetryable checks if an error is a Retryable error.
func IsRetryable(err error) bool {
	return isCode(err, ErrCodeRetryable)
}

// IsContent checks if an error is a Content error.
func IsContent(err error) bool {
	return isCode(err, ErrCodeContent)
}

// IsPolicy checks if an error is a Policy error.
func IsPolicy(err error) bool {
	return isCode(err, ErrCodePolicy)
}
