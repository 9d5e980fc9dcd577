package reasoner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies reasoning-service failures.
type ErrorType string

const (
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeModel      ErrorType = "model"
	ErrorTypeTransport  ErrorType = "transport"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// Error is a structured reasoning-service error.
type Error struct {
	Type      ErrorType
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

func newError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{Type: errType, Message: message, Retryable: retryable, Cause: cause}
}

// classifyError maps a raw provider error onto the taxonomy. Every path
// out of a provider client goes through here so the orchestrator only ever
// sees *Error.
func classifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var rErr *Error
	if errors.As(err, &rErr) {
		return rErr
	}

	lower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key"):
		return newError(ErrorTypeAuth, "authentication failed", false, err)

	case strings.Contains(lower, "model") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist")):
		return newError(ErrorTypeModel, "model not found", false, err)

	case strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded") ||
		strings.Contains(lower, "context canceled"):
		return newError(ErrorTypeTransport, "request timeout", true, err)

	case strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "no such host"):
		return newError(ErrorTypeTransport, "connection failed", true, err)

	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit"):
		return newError(ErrorTypeTransport, "rate limited", true, err)

	case strings.Contains(lower, "500") || strings.Contains(lower, "502") ||
		strings.Contains(lower, "503") || strings.Contains(lower, "504"):
		return newError(ErrorTypeTransport, "server error", true, err)
	}

	return newError(ErrorTypeUnknown, "reasoning call failed", false, err)
}
