package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Domain errors. Every error returned across a port wraps one of these so
// callers can classify it with errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed configuration or arguments.
	// Input errors are rejected before any I/O and are never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransient indicates a temporary I/O failure (timeout, 5xx, rate limit).
	// Transient errors are retried with backoff.
	ErrTransient = errors.New("transient failure")

	// ErrEmbeddingUnavailable indicates the embedding provider could not be reached.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIndexUnavailable indicates the vector index backend could not be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrLLMUnavailable indicates the language model could not be reached
	// or is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrSkipped indicates an input was skipped for a data reason.
	// Skips are recorded in the run summary and never abort a run.
	ErrSkipped = errors.New("skipped")

	// ErrExcluded indicates a path rejected by the exclusion rules.
	ErrExcluded = errors.New("path excluded")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// index dimension. Results computed across dimensions are meaningless,
	// so this aborts the run or query.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrModelMismatch indicates the configured embedding model differs from
	// the model the index was built with.
	ErrModelMismatch = errors.New("embedding model mismatch")
)

// SkipReason explains why an input was skipped.
type SkipReason string

// Skip reasons.
const (
	SkipTooLarge    SkipReason = "too_large"
	SkipSymlink     SkipReason = "symlink"
	SkipBinary      SkipReason = "binary"
	SkipUndecodable SkipReason = "undecodable"
	SkipEmpty       SkipReason = "empty"
	SkipUnreadable  SkipReason = "unreadable"
)

// SkipError is a data error for one input. It unwraps to ErrSkipped.
type SkipError struct {
	Path   string
	Reason SkipReason
	Err    error
}

// NewSkipError creates a SkipError. err may be nil.
func NewSkipError(path string, reason SkipReason, err error) *SkipError {
	return &SkipError{Path: path, Reason: reason, Err: err}
}

func (e *SkipError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("skip %s (%s): %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("skip %s (%s)", e.Path, e.Reason)
}

// Unwrap lets errors.Is match both ErrSkipped and the underlying cause.
func (e *SkipError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSkipped, e.Err}
	}
	return []error{ErrSkipped}
}

// AsSkip extracts a SkipError from err.
func AsSkip(err error) (*SkipError, bool) {
	var se *SkipError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// ErrorClass is the propagation class of an error.
type ErrorClass int

// Error classes, in the order they are checked.
const (
	ClassUnknown ErrorClass = iota
	ClassInput
	ClassConsistency
	ClassData
	ClassTransient
	ClassCancelled
)

// String returns the class name.
func (c ErrorClass) String() string {
	switch c {
	case ClassInput:
		return "input"
	case ClassConsistency:
		return "consistency"
	case ClassData:
		return "data"
	case ClassTransient:
		return "transient"
	case ClassCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Fatal returns true for classes that abort a run.
func (c ErrorClass) Fatal() bool {
	return c == ClassInput || c == ClassConsistency || c == ClassCancelled
}

// Classify maps an error onto the taxonomy. Consistency wins over input so a
// wrapped mismatch is never mistaken for a bad argument.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrDimensionMismatch), errors.Is(err, ErrModelMismatch):
		return ClassConsistency
	case errors.Is(err, ErrInvalidInput):
		return ClassInput
	case errors.Is(err, ErrSkipped):
		return ClassData
	case errors.Is(err, context.Canceled):
		return ClassCancelled
	case errors.Is(err, ErrTransient),
		errors.Is(err, ErrEmbeddingUnavailable),
		errors.Is(err, ErrIndexUnavailable),
		errors.Is(err, ErrLLMUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	default:
		return ClassUnknown
	}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return Classify(err) == ClassTransient
}

// RetryAfterError carries a delay requested by a provider (for example an
// HTTP Retry-After header). It wraps the underlying transient error.
type RetryAfterError struct {
	After time.Duration
	Err   error
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("%v (retry after %s)", e.Err, e.After)
}

func (e *RetryAfterError) Unwrap() error {
	return e.Err
}

// RetryAfter returns the provider-requested delay carried by err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var ra *RetryAfterError
	if errors.As(err, &ra) && ra.After > 0 {
		return ra.After, true
	}
	return 0, false
}
