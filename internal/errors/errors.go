// Package errors defines typed error values with stable codes for all
// of remedy's failure modes. Every internal failure is reported as a
// *CorrectionError carrying a code, a human message, and an optional
// wrapped cause.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// MalformedDiagnostic indicates a diagnostic record failed validation;
	// the record is skipped, the batch continues
	MalformedDiagnostic ErrorCode = "MALFORMED_DIAGNOSTIC"
	// ParseFailure indicates a source file failed to parse; the whole file
	// is skipped for this run, partial trees are never used
	ParseFailure ErrorCode = "PARSE_FAILURE"
	// StrategyGeneration indicates a single strategy failed while
	// generating proposals; isolated to that strategy
	StrategyGeneration ErrorCode = "STRATEGY_GENERATION"
	// StaleProposal indicates the node at a proposal's span no longer has
	// the expected kind at apply time; the proposal is discarded
	StaleProposal ErrorCode = "STALE_PROPOSAL"
	// VerificationFailed indicates the post-apply check failed and the
	// file was rolled back to its backup
	VerificationFailed ErrorCode = "VERIFICATION_FAILED"
	// ApplyIO indicates an I/O failure while writing a correction;
	// recoverable when a backup exists
	ApplyIO ErrorCode = "APPLY_IO"
	// RollbackFailure indicates a rollback could not be completed; the
	// file may be inconsistent and needs operator attention
	RollbackFailure ErrorCode = "ROLLBACK_FAILURE"
	// ConfigInvalid indicates the configuration failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// AnalyzerUnavailable indicates the external diagnostic tool is not
	// installed or not runnable
	AnalyzerUnavailable ErrorCode = "ANALYZER_UNAVAILABLE"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// CorrectionError represents a remedy error with code, message, and cause
type CorrectionError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error       // Underlying error (not exported to JSON)
}

// New creates a new CorrectionError
func New(code ErrorCode, message string, cause error) *CorrectionError {
	return &CorrectionError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Newf creates a new CorrectionError with a formatted message and no cause
func Newf(code ErrorCode, format string, args ...interface{}) *CorrectionError {
	return &CorrectionError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface
func (e *CorrectionError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *CorrectionError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *CorrectionError) WithDetails(details interface{}) *CorrectionError {
	e.Details = details
	return e
}

// CodeOf extracts the ErrorCode from an error chain. Errors that are not
// CorrectionErrors report InternalError.
func CodeOf(err error) ErrorCode {
	var ce *CorrectionError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return InternalError
}

// Is reports whether any error in err's chain carries the given code.
func Is(err error, code ErrorCode) bool {
	var ce *CorrectionError
	if stderrors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// Recoverable reports whether an error of this code is isolated to one
// diagnostic, strategy, or file. Only RollbackFailure escalates to a
// run-level fatal condition.
func Recoverable(code ErrorCode) bool {
	return code != RollbackFailure
}
