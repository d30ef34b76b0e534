package common

import (
	"context"

	"github.com/cockroachdb/errors"

	"falcon-dedupe/internal/api"
)

// ErrInvalidBatchSize is returned when a batch size is not positive
var ErrInvalidBatchSize = errors.New("batch size must be a positive integer")

// BatchOutcome is the result of submitting one chunk
type BatchOutcome struct {
	Index  int
	IDs    []string
	Err    error
	Errors []api.Error
}

// Success reports whether the chunk was accepted without errors
func (o BatchOutcome) Success() bool {
	return o.Err == nil && len(o.Errors) == 0
}

// SubmitFunc issues one call for a chunk of ids
type SubmitFunc func(ctx context.Context, ids []string) error

// BatchProcessor submits ids in consecutive chunks, one call at a time
type BatchProcessor struct {
	// Batch size for processing
	BatchSize int

	// Progress callback, invoked after every chunk
	// completed: number of completed batches
	// total: total number of batches
	// successful: number of ids in successful batches so far
	ProgressCallback func(completed, total, successful int)
}

// NewBatchProcessor creates a new batch processor with default settings
func NewBatchProcessor() *BatchProcessor {
	return &BatchProcessor{
		BatchSize:        100, // Maximum ids per host action request
		ProgressCallback: func(completed, total, successful int) {},
	}
}

// WithBatchSize sets the batch size and returns the processor for chaining
func (p *BatchProcessor) WithBatchSize(size int) *BatchProcessor {
	p.BatchSize = size
	return p
}

// WithProgressCallback sets the progress callback and returns the processor for chaining
func (p *BatchProcessor) WithProgressCallback(callback func(completed, total, successful int)) *BatchProcessor {
	if callback != nil {
		p.ProgressCallback = callback
	}
	return p
}

// Submit splits ids into chunks of at most BatchSize and calls fn once per
// chunk, in order. A failed chunk does not stop the ones after it; each
// outcome carries its own errors.
func (p *BatchProcessor) Submit(ctx context.Context, ids []string, fn SubmitFunc) ([]BatchOutcome, error) {
	if p.BatchSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidBatchSize, "got %d", p.BatchSize)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	batches := SplitIntoBatches(ids, p.BatchSize)
	outcomes := make([]BatchOutcome, 0, len(batches))
	successful := 0

	for idx, batch := range batches {
		outcome := BatchOutcome{Index: idx, IDs: batch}

		if err := fn(ctx, batch); err != nil {
			if pairs := api.ErrorPairs(err); len(pairs) > 0 {
				outcome.Errors = pairs
			} else {
				outcome.Err = NewBatchError(idx, "submission failed", err)
			}
		} else {
			successful += len(batch)
		}

		outcomes = append(outcomes, outcome)
		p.ProgressCallback(idx+1, len(batches), successful)
	}

	return outcomes, nil
}

// SubmitBatches is a shorthand for a processor with the given batch size
func SubmitBatches(ctx context.Context, ids []string, batchSize int, fn SubmitFunc) ([]BatchOutcome, error) {
	return NewBatchProcessor().WithBatchSize(batchSize).Submit(ctx, ids, fn)
}

// SplitIntoBatches splits a slice into consecutive batches of at most batchSize
func SplitIntoBatches[T any](items []T, batchSize int) [][]T {
	if batchSize <= 0 || len(items) == 0 {
		return nil
	}

	// Calculate number of batches
	numBatches := (len(items) + batchSize - 1) / batchSize

	batches := make([][]T, 0, numBatches)
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}

	return batches
}

// FailedOutcomes returns the outcomes that did not succeed
func FailedOutcomes(outcomes []BatchOutcome) []BatchOutcome {
	var failed []BatchOutcome
	for _, o := range outcomes {
		if !o.Success() {
			failed = append(failed, o)
		}
	}
	return failed
}

// RemoveDuplicates removes duplicate strings from a slice while preserving order
func RemoveDuplicates(items []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(items))

	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}

	return result
}
