package jobs

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure and drives the retry-or-surface decision.
type Kind string

const (
	KindNone          Kind = ""
	KindAuth          Kind = "auth_error"
	KindRateLimited   Kind = "rate_limited"
	KindQuotaExceeded Kind = "quota_exceeded"
	KindValidation    Kind = "validation_error"
	KindNotFound      Kind = "not_found"
	KindTransient     Kind = "transient"
	KindFatal         Kind = "fatal"
	KindTimedOut      Kind = "timed_out"
)

// ErrTimedOut is wrapped by the error returned when the polling budget is
// exhausted before a terminal state was observed.
var ErrTimedOut = errors.New("jobs: timed out waiting for terminal state")

// ErrJobFailed is wrapped by the error returned when the provider itself
// reported the job as failed. The accompanying Result carries its message.
var ErrJobFailed = errors.New("jobs: job failed")

// Error is the classified failure returned by every component.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	// RetryAfter is set for rate limited responses.
	RetryAfter time.Duration
	// Detail holds parsed validation detail, or the raw body when it was not JSON.
	Detail any
	Err    error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a locally raised validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Fatal returns a non-retryable error.
func Fatal(format string, args ...any) *Error {
	return &Error{Kind: KindFatal, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the classification of err. Unclassified errors are fatal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var jerr *Error
	if errors.As(err, &jerr) {
		if errors.Is(jerr, ErrTimedOut) {
			return KindTimedOut
		}
		return jerr.Kind
	}
	return KindFatal
}

// IsTimedOut reports whether err came from an exhausted polling budget.
func IsTimedOut(err error) bool {
	return errors.Is(err, ErrTimedOut)
}

// asError returns err as a classified *Error, using fallback for errors
// that carry no classification.
func asError(err error, fallback Kind) *Error {
	var jerr *Error
	if errors.As(err, &jerr) {
		return jerr
	}
	return &Error{Kind: fallback, Err: err}
}

// IsRetryable reports whether a poll failing with kind may be repeated
// within the polling budget.
func IsRetryable(kind Kind) bool {
	return kind == KindTransient || kind == KindRateLimited
}
