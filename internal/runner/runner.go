// Package runner ties fetching, selection and hiding into one dedupe run.
package runner

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"falcon-dedupe/internal/common"
	"falcon-dedupe/internal/dedupe"
	"falcon-dedupe/internal/logger"
)

// ErrPartialFailure is returned when at least one chunk was not accepted
var ErrPartialFailure = errors.New("one or more batches failed")

// ErrCancelled is returned when the confirmation prompt is declined
var ErrCancelled = errors.New("operation cancelled")

// Fetcher returns the host records matching a filter
type Fetcher interface {
	Fetch(ctx context.Context, filter string, limit int) ([]dedupe.HostRecord, error)
}

// Actioner hides one chunk of devices
type Actioner interface {
	Hide(ctx context.Context, ids []string) error
}

// Options controls a single run
type Options struct {
	Filter    string
	Limit     int
	BatchSize int

	// Apply submits the selection; otherwise only a dry-run summary is printed
	Apply bool

	// Verbose lists every id in the dry-run summary
	Verbose bool

	// Confirm is asked before submitting when Apply is set; nil means yes
	Confirm func(count int) bool
}

// Report summarizes a run
type Report struct {
	Fetched  int
	Selected []dedupe.Selection
	Outcomes []common.BatchOutcome
	DryRun   bool
}

// IDs returns the selected device ids in submission order
func (r *Report) IDs() []string {
	return dedupe.IDs(r.Selected)
}

// Runner executes fetch, select, audit and hide in sequence
type Runner struct {
	Fetcher  Fetcher
	Actioner Actioner
	Out      io.Writer
	Logger   zerolog.Logger
}

// Run performs one dedupe pass. Audit lines for every selected record are
// written to Out before any hide call is made.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	log := r.Logger

	records, err := r.Fetcher.Fetch(ctx, opts.Filter, opts.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "fetching host records")
	}
	log.Debug().Int("records", len(records)).Str("filter", opts.Filter).Msg("fetched host records")

	selector := dedupe.NewSelector(
		dedupe.WithObserver(common.AuditWriter{W: r.Out}),
		dedupe.WithObserver(logger.SelectionObserver{Log: log}),
	)
	selected, err := selector.Select(records)
	if err != nil {
		return nil, err
	}

	report := &Report{Fetched: len(records), Selected: selected, DryRun: !opts.Apply}
	if len(selected) == 0 {
		log.Info().Msg("no stale duplicates found")
		return report, nil
	}

	ids := report.IDs()
	dryRun := common.DryRunOptions{
		Enabled:    !opts.Apply,
		Verbose:    opts.Verbose,
		ItemType:   "hosts",
		ActionVerb: "hide",
		BatchSize:  opts.BatchSize,
	}
	if !common.HandleDryRun(r.Out, dryRun, ids) {
		return report, nil
	}

	if opts.Confirm != nil && !opts.Confirm(len(ids)) {
		return report, ErrCancelled
	}

	processor := common.NewBatchProcessor().
		WithBatchSize(opts.BatchSize).
		WithProgressCallback(func(completed, total, successful int) {
			log.Debug().Int("batch", completed).Int("total", total).Int("hidden", successful).Msg("batch submitted")
		})

	outcomes, err := processor.Submit(ctx, ids, r.Actioner.Hide)
	if err != nil {
		return report, err
	}
	report.Outcomes = outcomes

	common.PrintBatchOutcomes(r.Out, "hide", outcomes)

	if failed := common.FailedOutcomes(outcomes); len(failed) > 0 {
		log.Warn().Int("failed_batches", len(failed)).Int("batches", len(outcomes)).Msg("hide finished with failures")
		return report, errors.Wrap(ErrPartialFailure, common.SummarizeBatchOutcomes(outcomes))
	}

	log.Info().Int("hidden", len(ids)).Int("batches", len(outcomes)).Msg("hide finished")
	return report, nil
}
