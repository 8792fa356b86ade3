// Package errors provides the standardized error model shared by the flow
// core, the HTTP adapter and the workflow worker.
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

const (
	ErrCodeRequiredFieldsMissing ErrorCode = "REQUIRED_FIELDS_MISSING"
	ErrCodeDateRangeInvalid      ErrorCode = "DATE_RANGE_INVALID"

	ErrCodeSubmissionFailed   ErrorCode = "SUBMISSION_FAILED"
	ErrCodeSubmissionTimeout  ErrorCode = "SUBMISSION_TIMEOUT"
	ErrCodeSubmissionRejected ErrorCode = "SUBMISSION_REJECTED"
	ErrCodeSubmissionInFlight ErrorCode = "SUBMISSION_IN_FLIGHT"

	ErrCodeTransitionNotAllowed ErrorCode = "TRANSITION_NOT_ALLOWED"
	ErrCodePaymentNotReady      ErrorCode = "PAYMENT_NOT_READY"

	ErrCodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionStoreFailed ErrorCode = "SESSION_STORE_FAILED"

	ErrCodeExternalService    ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
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

// NewRequiredFieldsMissingError reports the empty required fields in declared order.
func NewRequiredFieldsMissingError(missing []string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequiredFieldsMissing,
		Message:   "Please fill in all required fields",
		Details:   strings.Join(missing, ", "),
		Retryable: false,
		Metadata:  map[string]interface{}{"missingFields": missing},
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewDateRangeInvalidError(message string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDateRangeInvalid,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewSubmissionFailedError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionFailed,
		Message:   "There was an error submitting your request. Please try again.",
		Details:   cause.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewSubmissionTimeoutError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionTimeout,
		Message:   "The submission timed out. Please check your connection and try again.",
		Details:   cause.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewSubmissionRejectedError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionRejected,
		Message:   "Your request could not be accepted. Please review your details and try again.",
		Details:   cause.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewSubmissionInFlightError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionInFlight,
		Message:   "Your request is already being submitted",
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewTransitionNotAllowedError(details string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransitionNotAllowed,
		Message:   "Step transition not allowed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewPaymentNotReadyError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentNotReady,
		Message:   "Payment is available once your request has been submitted",
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewSessionNotFoundError(sessionID string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Session not found or expired",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewSessionStoreFailedError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreFailed,
		Message:   "Session store error",
		Details:   cause.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewExternalServiceError wraps a failure of a dependency other than the
// submission endpoint, such as the workflow broker.
func NewExternalServiceError(service string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("%s is unavailable", service),
		Details:   cause.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewInputParsingFailedError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputParsingFailed,
		Message:   "Failed to parse input",
		Details:   cause.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 4. Classification
// ==========================

// Classifier maps a domain error to a StandardError. It returns nil when the
// error is not one it recognises.
type Classifier func(err error) *StandardError

var classifiers []Classifier

// RegisterClassifier adds a classifier consulted by Normalize. Domain packages
// register theirs from init so this package stays free of domain imports.
func RegisterClassifier(c Classifier) {
	classifiers = append(classifiers, c)
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	for _, c := range classifiers {
		if se := c(err); se != nil {
			return se
		}
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeSubmissionFailed, ErrCodeSessionStoreFailed, ErrCodeExternalService:
		return 3
	case ErrCodeSubmissionTimeout, ErrCodeSubmissionInFlight:
		return 2
	case ErrCodeSubmissionRejected:
		return 1
	default:
		return 0 // business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
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

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "SUBMISSION"):
		return "SUBMISSION"
	case strings.HasPrefix(codeStr, "SESSION"):
		return "SESSION"
	case strings.Contains(codeStr, "TRANSITION") || strings.Contains(codeStr, "PAYMENT"):
		return "NAVIGATION"
	case strings.Contains(codeStr, "MISSING") || strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
