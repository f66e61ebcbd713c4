package errors

import (
	"errors"
	"fmt"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation = "E100"
	CodeNotFound   = "E110"
	CodeDatabase   = "E200"
	CodeUpstream   = "E300"
	CodeWallet     = "E350"
	CodeState      = "E400"
	CodeRateLimit  = "E500"
	CodeAuth       = "E600"
)

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: fmt.Sprintf("That doesn't look right. %s", msg),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewNotFoundError reports a listing or profile that does not exist.
func NewNotFoundError(what string) *AppError {
	return &AppError{
		Code:        CodeNotFound,
		Message:     what + " not found",
		UserMessage: fmt.Sprintf("Sorry, that %s doesn't exist.", what),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

func NewDatabaseError(cause error) *AppError {
	return &AppError{
		Code:        CodeDatabase,
		Message:     "database error",
		UserMessage: "Temporary problem, please try again later.",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewUpstreamError wraps a failed call to one of the marketplace services or the identity provider.
func NewUpstreamError(service string, cause error) *AppError {
	return &AppError{
		Code:        CodeUpstream,
		Message:     fmt.Sprintf("upstream %s error", service),
		UserMessage: "The marketplace is temporarily unavailable. Please try again shortly.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

func NewWalletError(cause error) *AppError {
	return &AppError{
		Code:        CodeWallet,
		Message:     "wallet bridge error",
		UserMessage: "Your wallet did not respond. Check that your wallet bridge is running.",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        CodeState,
		Message:     msg,
		UserMessage: "That action isn't available right now.",
		Severity:    SeverityMedium,
		Retryable:   false,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        CodeRateLimit,
		Message:     fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewAuthError reports a missing or ended identity session.
func NewAuthError(msg string) *AppError {
	return &AppError{
		Code:        CodeAuth,
		Message:     msg,
		UserMessage: "Please log in first with /login.",
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// HasCode reports whether err wraps an AppError with code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
