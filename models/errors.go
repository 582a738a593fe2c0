package models

import (
	"context"
	"errors"
	"fmt"
)

// Error codes attached to probe failures. Fatal codes abort the process;
// soft codes end the run with a logged failure record.
const (
	ErrCodeBrowserCrash     = "BROWSER_CRASH"
	ErrCodeNavigation       = "NAVIGATION_FAILED"
	ErrCodeTimeout          = "PROBE_TIMEOUT"
	ErrCodeChallengeTimeout = "CHALLENGE_TIMEOUT"
	ErrCodeChallenge        = "CHALLENGE_ACTIVE"
	ErrCodeExtraction       = "EXTRACTION_FAILED"
	ErrCodeInvalidInput     = "INVALID_INPUT"
)

// ProbeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ProbeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// NewProbeError creates a new ProbeError.
func NewProbeError(code, message string, err error) *ProbeError {
	return &ProbeError{Code: code, Message: message, Err: err}
}

// Categorize wraps a raw error into a typed ProbeError so the caller can
// decide between a fatal exit and a soft failure record.
func Categorize(err error, msg string) *ProbeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProbeError(ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return NewProbeError(ErrCodeTimeout, "probe canceled", err)
	default:
		return NewProbeError(ErrCodeNavigation, msg, err)
	}
}

// Code extracts the probe error code from any error, or "" when the error
// carries none.
func Code(err error) string {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsFatal reports whether the error should abort the process with a
// non-zero exit rather than end the run as a soft failure.
func IsFatal(err error) bool {
	return Code(err) == ErrCodeBrowserCrash
}
