package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation    ErrorCategory = "validation"    // Invalid input
	ErrCatExecution     ErrorCategory = "execution"     // Producer runtime failure
	ErrCatTimeout       ErrorCategory = "timeout"       // Producer call timed out
	ErrCatState         ErrorCategory = "state"         // Illegal state mutation
	ErrCatGate          ErrorCategory = "gate"          // Fatal gate verdict
	ErrCatBudget        ErrorCategory = "budget"        // Retry budget exhausted
	ErrCatConfiguration ErrorCategory = "configuration" // Malformed collaborator output or config
	ErrCatInternal      ErrorCategory = "internal"      // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrProducer creates an execution error for a failed producer call.
// Retryable at the workflow level: it consumes per-producer budget.
func ErrProducer(producer Producer, cause error) *DomainError {
	return &DomainError{
		Category:  ErrCatExecution,
		Code:      CodeProducerFailed,
		Message:   fmt.Sprintf("producer %s failed", producer),
		Retryable: true,
		Cause:     cause,
	}
}

// ErrProducerTimeout creates a timeout error for a producer call.
func ErrProducerTimeout(producer Producer, cause error) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      CodeProducerTimeout,
		Message:   fmt.Sprintf("producer %s timed out", producer),
		Retryable: true,
		Cause:     cause,
	}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrGateFatal creates the error carried by a fatal gate verdict.
func ErrGateFatal(gate Gate, reason string) *DomainError {
	return &DomainError{
		Category:  ErrCatGate,
		Code:      CodeGateFatal,
		Message:   fmt.Sprintf("gate %s failed fatally: %s", gate, reason),
		Retryable: false,
	}
}

// ErrBudgetExhausted records a retry downgraded by an exhausted budget.
func ErrBudgetExhausted(scope, name string) *DomainError {
	return &DomainError{
		Category:  ErrCatBudget,
		Code:      CodeBudgetExhausted,
		Message:   fmt.Sprintf("%s %s has no retry budget left", scope, name),
		Retryable: false,
	}
}

// ErrConfiguration creates a configuration error. Malformed collaborator
// output lands here and is never silently coerced to a default.
func ErrConfiguration(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatConfiguration,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes
const (
	CodeProducerFailed   = "PRODUCER_FAILED"
	CodeProducerTimeout  = "PRODUCER_TIMEOUT"
	CodeGateFatal        = "GATE_FATAL"
	CodeBudgetExhausted  = "BUDGET_EXHAUSTED"
	CodeInvalidVerdict   = "INVALID_VERDICT"
	CodeGateUnresponsive = "GATE_UNRESPONSIVE"
	CodeInvalidState     = "INVALID_STATE"
	CodeStateCorrupted   = "STATE_CORRUPTED"
	CodeUnknownProducer  = "UNKNOWN_PRODUCER"
	CodeUnknownGate      = "UNKNOWN_GATE"

	// Validation error codes
	CodeEmptyInput     = "EMPTY_INPUT"
	CodeInputTooLong   = "INPUT_TOO_LONG"
	CodeInvalidConfig  = "INVALID_CONFIG"
	CodeInvalidTimeout = "INVALID_TIMEOUT"
)

// MaxInputLength is the maximum allowed request length.
const MaxInputLength = 100000
