// internal/common/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	// Pipeline outcomes surfaced to callers.
	ErrCodeNeedsIdentification ErrorCode = "NEEDS_IDENTIFICATION"
	ErrCodeCouldNotUnderstand  ErrorCode = "COULD_NOT_UNDERSTAND"
	ErrCodeSynthesisFailed     ErrorCode = "SYNTHESIS_ERROR"
	ErrCodeExecutionFailed     ErrorCode = "EXECUTION_ERROR"

	// Configuration or data defects.
	ErrCodeUnknownRole            ErrorCode = "UNKNOWN_ROLE"
	ErrCodeGeneratorNotConfigured ErrorCode = "GENERATOR_NOT_CONFIGURED"
	ErrCodeConfiguration          ErrorCode = "CONFIG_ERROR"

	// Infrastructure.
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeIdentityLookupFailed     ErrorCode = "IDENTITY_LOOKUP_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeInvalidInput             ErrorCode = "INVALID_INPUT"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the error value every pipeline stage returns.
// Details never carries query text or credentials; Cause is kept for logs only.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Cause     error                  `json:"-"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("StandardError[%s]: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// WithMetadata returns e after setting key to value.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ============================================================================
// Pipeline outcomes
// ============================================================================

func NewNeedsIdentificationError() *StandardError {
	return &StandardError{
		Code:      ErrCodeNeedsIdentification,
		Message:   "Caller could not be identified",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCouldNotUnderstandError wraps the reason the question produced no query.
// It is retryable when the cause was an exhausted transient generation failure.
func NewCouldNotUnderstandError(cause error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeCouldNotUnderstand,
		Message:   "Question could not be turned into a query",
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
	var inner *StandardError
	if stderrors.As(cause, &inner) {
		e.Details = string(inner.Code)
		e.Retryable = inner.Retryable
	}
	return e
}

func NewSynthesisError(attempts int, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSynthesisFailed,
		Message:   "Query synthesis failed",
		Details:   fmt.Sprintf("attempts: %d", attempts),
		Retryable: retryable,
		Cause:     cause,
		Metadata:  map[string]interface{}{"attempts": attempts},
		Timestamp: time.Now().UTC(),
	}
}

func NewExecutionError(source string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExecutionFailed,
		Message:   "Data store rejected the query",
		Details:   fmt.Sprintf("source: %s", source),
		Retryable: false,
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

// ============================================================================
// Configuration and data defects
// ============================================================================

func NewUnknownRoleError(role string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownRole,
		Message:   "Role is not recognised, applying most restrictive scope",
		Details:   fmt.Sprintf("role: %s", role),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewGeneratorNotConfiguredError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGeneratorNotConfigured,
		Message:   "No text generation backend is configured",
		Details:   fmt.Sprintf("provider: %s", provider),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfiguration,
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ============================================================================
// Infrastructure
// ============================================================================

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Cause:     err,
		Timestamp: time.Now().UTC(),
	}
}

func NewIdentityLookupFailedError(strategy string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIdentityLookupFailed,
		Message:   "Identity lookup failed",
		Details:   fmt.Sprintf("strategy: %s", strategy),
		Retryable: true,
		Cause:     err,
		Timestamp: time.Now().UTC(),
	}
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Elasticsearch query error",
		Details:   fmt.Sprintf("index: %s", index),
		Retryable: true,
		Cause:     err,
		Timestamp: time.Now().UTC(),
	}
}

func NewQueryTimeoutError(source string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("source: %s", source),
		Retryable: false,
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ============================================================================
// Classification helpers
// ============================================================================

// AsStandardError extracts a StandardError from err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeNeedsIdentification:      "NEEDS_IDENTIFICATION",
	ErrCodeCouldNotUnderstand:       "COULD_NOT_UNDERSTAND",
	ErrCodeSynthesisFailed:          "SYNTHESIS_ERROR",
	ErrCodeExecutionFailed:          "EXECUTION_ERROR",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeIdentityLookupFailed:     "IDENTITY_LOOKUP_FAILED",
	ErrCodeQueryTimeout:             "QUERY_TIMEOUT",
	ErrCodeInvalidInput:             "INVALID_INPUT",
}

// GetRetryCount returns how many job retries an error code earns.
// Execution failures are never retried: a rejected query is not safe to resubmit.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeIdentityLookupFailed,
		ErrCodeSearchQueryFailed:
		return 3
	case ErrCodeSynthesisFailed:
		return 1
	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}
	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeNeedsIdentification || strings.Contains(codeStr, "IDENTITY") || strings.Contains(codeStr, "ROLE"):
		return "IDENTITY"
	case code == ErrCodeCouldNotUnderstand || strings.Contains(codeStr, "SYNTHESIS") || strings.Contains(codeStr, "GENERATOR"):
		return "AI"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "EXECUTION"):
		return "DATABASE"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "CONFIG"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// ============================================================================
// Caller-facing sentences
// ============================================================================

const (
	MessageRephrase   = "I'm sorry, I couldn't understand your question. Could you try rephrasing it?"
	MessageTryLater   = "I'm having trouble reaching the data assistant right now. Please try again in a moment."
	MessageNoAnswer   = "I'm sorry, I couldn't retrieve that information right now. Please try asking in a different way."
	messageIdentifyFn = "Hi! I'm %s, your AI assistant. Could you please tell me your agent ID or full name so I can help you?"
)

// UserMessage renders the sentence an end caller hears for err.
// It never includes query text, stack traces, or credentials.
func UserMessage(err error, assistantName string) string {
	stdErr, ok := AsStandardError(err)
	if !ok {
		return MessageNoAnswer
	}
	switch stdErr.Code {
	case ErrCodeNeedsIdentification:
		if assistantName == "" {
			assistantName = "Jen"
		}
		return fmt.Sprintf(messageIdentifyFn, assistantName)
	case ErrCodeCouldNotUnderstand, ErrCodeSynthesisFailed:
		if stdErr.Retryable {
			return MessageTryLater
		}
		return MessageRephrase
	default:
		return MessageNoAnswer
	}
}
