// Package errtax is the saga error taxonomy: the typed errors the
// orchestrator, retrier, and engines use to tell a reversible failure
// (retry, then compensate) from a permanent one (never retried; during
// forward execution the job fails without compensation), plus the
// wire-serializable form of any error that crosses
// an Engine boundary.
package errtax

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
)

// Sentinel errors for conditions outside the saga taxonomy proper: small
// stdlib sentinels for "this isn't a business failure, it's a wiring bug".
var (
	ErrClassNotFound = errors.New("errtax: class not found")
	ErrJobNotFound   = errors.New("errtax: job not found")
	ErrStepNotFound  = errors.New("errtax: step not found")
	ErrStaleVersion  = errors.New("errtax: stale job version")
)

// PermanentFailure marks an error as non-retryable: the Retrier returns
// it without another attempt, and the orchestrator fails the job without
// compensation (during Down) or marks it Compensation_Failed (during Up).
type PermanentFailure struct {
	msg   string
	cause error
}

func NewPermanentFailure(msg string, cause error) *PermanentFailure {
	return &PermanentFailure{msg: msg, cause: cause}
}

func (e *PermanentFailure) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.cause.Error())
	}
	return e.msg
}

func (e *PermanentFailure) Unwrap() error { return e.cause }

// StepInitializationError wraps a failure to resolve or construct a Step
// from the registry — either the executor name was never registered
// (ErrClassNotFound) or its factory closure panicked during construction.
type StepInitializationError struct {
	msg   string
	cause error
}

func NewStepInitializationError(msg string, cause error) *StepInitializationError {
	return &StepInitializationError{msg: msg, cause: cause}
}

func (e *StepInitializationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.cause.Error())
	}
	return e.msg
}

func (e *StepInitializationError) Unwrap() error { return e.cause }

// ValidationError reports a structural problem with a Job/Step/Chunk that
// was caught before any side effect occurred (e.g. by ValidatePlan).
// Never retried; never compensated, since no step ever
// ran.
type ValidationError struct {
	msg string
}

func NewValidationError(msg string) *ValidationError { return &ValidationError{msg: msg} }

func (e *ValidationError) Error() string { return e.msg }

// PublishingError reports a partial failure handing a batch of jobs to an
// Engine: some jobs were accepted, some were not, and the caller needs to
// know which is which to decide what to retry.
type PublishingError struct {
	SuccessfulJobs []uuid.UUID
	FailedJobs     []uuid.UUID
	ErrorsByIndex  map[int]error
}

func (e *PublishingError) Error() string {
	return fmt.Sprintf("errtax: publishing error: %d succeeded, %d failed", len(e.SuccessfulJobs), len(e.FailedJobs))
}

// DMLError is a per-record mutation failure from a Provider bulk write:
// one entry per row that failed in a batched Create/Updates call.
type DMLError struct {
	RecordIndex   int      `json:"recordIndex"`
	StatusCode    string   `json:"statusCode"`
	StatusMessage string   `json:"statusMessage"`
	Fields        []string `json:"fields"`
}

// Cause walks the cause chain of err, preferring pkg/errors.Cause and
// falling back to stdlib errors.Unwrap for errors that only implement
// the stdlib Unwrap() error contract (PermanentFailure, etc. above).
func Cause(err error) error {
	if err == nil {
		return nil
	}
	type causer interface{ Cause() error }
	if c, ok := err.(causer); ok {
		if inner := c.Cause(); inner != nil {
			return inner
		}
	}
	return errors.Unwrap(err)
}

// Wrap attaches msg as context to err using the pkg/errors idiom,
// preserving err as the unwrappable cause.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, msg)
}

// IsPermanent reports whether err is, or wraps, a *PermanentFailure or a
// *StepInitializationError — the latter is never retryable either, since
// a class that could not be resolved or constructed will not resolve or
// construct any differently on a second attempt.
func IsPermanent(err error) bool {
	var pf *PermanentFailure
	if errors.As(err, &pf) {
		return true
	}
	var sie *StepInitializationError
	return errors.As(err, &sie)
}
