// Package errors provides standardized error handling for transaction dispatch
// and BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Dispatch outcome codes surfaced to the user and to BPMN processes.
const (
	ErrCodeCredentialsMissing     ErrorCode = "CREDENTIALS_MISSING"
	ErrCodeUnsupportedOperation   ErrorCode = "UNSUPPORTED_OPERATION"
	ErrCodeMalformedIntent        ErrorCode = "MALFORMED_INTENT"
	ErrCodeRemoteTransportFailure ErrorCode = "REMOTE_TRANSPORT_FAILURE"

	ErrCodeIntentParsingFailed ErrorCode = "INTENT_PARSING_FAILED"
	ErrCodeIntentAPITimeout    ErrorCode = "INTENT_API_TIMEOUT"
	ErrCodeNoTransactionIntent ErrorCode = "NO_TRANSACTION_INTENT"

	ErrCodeSessionNotFound       ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeInputValidationFailed ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeAuditWriteFailed      ErrorCode = "AUDIT_WRITE_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
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

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
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

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewCredentialsMissingError creates a non-retryable error listing the empty
// credential fields. Field names only, never values.
func NewCredentialsMissingError(fields []string) *StandardError {
	return newError(ErrCodeCredentialsMissing, "credentials not configured",
		fmt.Sprintf("missing: %s", strings.Join(fields, ", ")), false)
}

// NewUnsupportedOperationError creates a non-retryable error for an unknown transaction type.
func NewUnsupportedOperationError(transactionType string) *StandardError {
	return newError(ErrCodeUnsupportedOperation, "Unsupported transaction type",
		fmt.Sprintf("transactionType: %s", transactionType), false)
}

// NewMalformedIntentError creates a non-retryable error for intents that cannot be built.
func NewMalformedIntentError(details string) *StandardError {
	return newError(ErrCodeMalformedIntent, "Transaction intent is malformed", details, false)
}

// NewRemoteTransportFailureError creates an error for a failed remote call.
// Dispatch is single-shot, so it is never retryable. The caller is
// responsible for redacting secrets from details.
func NewRemoteTransportFailureError(details string) *StandardError {
	return newError(ErrCodeRemoteTransportFailure, "Remote system call failed", details, false)
}

// NewIntentParsingFailedError creates a retryable intent parsing error.
func NewIntentParsingFailedError(err error) *StandardError {
	return newError(ErrCodeIntentParsingFailed, "Intent extraction API error", err.Error(), true)
}

// NewIntentAPITimeoutError creates a retryable intent API timeout error.
func NewIntentAPITimeoutError() *StandardError {
	return newError(ErrCodeIntentAPITimeout, "Intent extraction API timeout",
		"API call exceeded timeout threshold", true)
}

// NewNoTransactionIntentError is returned when the message describes no transaction.
func NewNoTransactionIntentError() *StandardError {
	return newError(ErrCodeNoTransactionIntent, "No transaction found in message", "", false)
}

func NewSessionNotFoundError(sessionID string) *StandardError {
	return newError(ErrCodeSessionNotFound, "Session not found",
		fmt.Sprintf("sessionId: %s", sessionID), false)
}

func NewInputValidationFailedError(details string) *StandardError {
	return newError(ErrCodeInputValidationFailed, "Input validation failed", details, false)
}

func NewAuditWriteFailedError(err error) *StandardError {
	return newError(ErrCodeAuditWriteFailed, "Audit record could not be written", err.Error(), true)
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeCredentialsMissing:     "CREDENTIALS_MISSING",
	ErrCodeUnsupportedOperation:   "UNSUPPORTED_OPERATION",
	ErrCodeMalformedIntent:        "MALFORMED_INTENT",
	ErrCodeRemoteTransportFailure: "REMOTE_TRANSPORT_FAILURE",
	ErrCodeIntentParsingFailed:    "INTENT_PARSING_FAILED",
	ErrCodeIntentAPITimeout:       "INTENT_API_TIMEOUT",
	ErrCodeNoTransactionIntent:    "NO_TRANSACTION_INTENT",
	ErrCodeInputValidationFailed:  "INPUT_VALIDATION_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeIntentParsingFailed,
		ErrCodeAuditWriteFailed:
		return 3

	case ErrCodeIntentAPITimeout:
		return 2

	default:
		// Dispatch outcomes are final: the remote call is not idempotent.
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
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

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError unwraps err to a *StandardError if one is in the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CREDENTIALS") || strings.Contains(codeStr, "SESSION"):
		return "AUTH/SESSION"
	case strings.Contains(codeStr, "OPERATION") || strings.Contains(codeStr, "MALFORMED"):
		return "TRANSACTION"
	case strings.Contains(codeStr, "REMOTE"):
		return "REMOTE"
	case strings.Contains(codeStr, "INTENT"):
		return "AI"
	case strings.Contains(codeStr, "AUDIT"):
		return "DATABASE"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
