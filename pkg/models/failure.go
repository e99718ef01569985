package models

import "errors"

// FailureCode classifies a component-local failure. The code drives the
// caller's recovery policy: clarify, retry once, or degrade.
type FailureCode string

const (
	// FailInvalidArgument marks malformed tool input. Never retried;
	// surfaced as a clarifying question.
	FailInvalidArgument FailureCode = "invalid_argument"
	// FailNotFound marks absent tool data. Retried at most once with
	// identical arguments, then surfaced as a degraded-data notice.
	FailNotFound FailureCode = "not_found"
	// FailUnavailable marks a backing source that is down. Same retry
	// policy as FailNotFound.
	FailUnavailable FailureCode = "unavailable"
	// FailMissingContext marks an action attempted without a required
	// antecedent. Never retried; converted to a clarifying question.
	FailMissingContext FailureCode = "missing_context"
	// FailTimeout marks a call that exceeded its bound. Treated as
	// FailUnavailable by callers.
	FailTimeout FailureCode = "timeout"
	// FailContractViolation marks a handler response that breaks a
	// structural requirement. Retried once with a corrective
	// instruction, else degraded and flagged.
	FailContractViolation FailureCode = "contract_violation"
)

// Failure is a typed, component-local error. Failures are absorbed into
// partial results with explicit caveats; they never abort a turn.
type Failure struct {
	Code    FailureCode
	Message string
}

func (f *Failure) Error() string {
	return string(f.Code) + ": " + f.Message
}

// NewFailure creates a Failure with the given code and message.
func NewFailure(code FailureCode, message string) *Failure {
	return &Failure{Code: code, Message: message}
}

// AsFailure extracts a Failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// RetryOnce reports whether the failure qualifies for the single-retry
// policy. FailTimeout qualifies because callers treat it as
// FailUnavailable.
func (f *Failure) RetryOnce() bool {
	switch f.Code {
	case FailNotFound, FailUnavailable, FailTimeout, FailContractViolation:
		return true
	default:
		return false
	}
}

// NeedsClarification reports whether the failure must be surfaced as a
// clarifying question rather than retried.
func (f *Failure) NeedsClarification() bool {
	return f.Code == FailInvalidArgument || f.Code == FailMissingContext
}
