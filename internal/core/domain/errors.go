package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrCancelled is the distinguished cancellation outcome. It is not a
// failure: callers must be able to tell it apart from both success and error.
var ErrCancelled = errors.New("request cancelled")

// ErrDimensionMismatch is returned by a vector store when an upsert carries
// vectors whose dimension differs from the namespace's. The memory layer
// reacts by recreating that one namespace and retrying once.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// RateLimitError reports a 429 from a model or data provider. Recoverable by
// retrying after RetryAfter.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// APIError is a generic upstream failure carrying the HTTP status.
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// ValidationError marks bad caller or model input; the request can be fixed
// and retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
