package common

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// BatchError represents an error that occurred during batch processing
type BatchError struct {
	BatchIndex int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *BatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("batch %d: %s: %v", e.BatchIndex+1, e.Message, e.Cause)
	}
	return fmt.Sprintf("batch %d: %s", e.BatchIndex+1, e.Message)
}

// Unwrap returns the underlying error
func (e *BatchError) Unwrap() error {
	return e.Cause
}

// NewBatchError creates a new batch error
func NewBatchError(batchIndex int, message string, cause error) *BatchError {
	return &BatchError{
		BatchIndex: batchIndex,
		Message:    message,
		Cause:      cause,
	}
}

// SummarizeBatchOutcomes provides a one-line summary of a submission
func SummarizeBatchOutcomes(outcomes []BatchOutcome) string {
	failed := FailedOutcomes(outcomes)
	if len(failed) == 0 {
		return fmt.Sprintf("%d of %d batches succeeded", len(outcomes), len(outcomes))
	}
	return fmt.Sprintf("%d of %d batches failed", len(failed), len(outcomes))
}

// FormatAPIError formats an API error with an operation description
func FormatAPIError(err error, operation string) error {
	return errors.Wrapf(err, "failed to %s", operation)
}

// ClientCreationError is a helper for the common API client creation error
func ClientCreationError(err error) error {
	return errors.Wrap(err, "failed to create API client")
}
