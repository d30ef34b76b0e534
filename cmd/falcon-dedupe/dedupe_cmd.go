package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"falcon-dedupe/internal/api"
	"falcon-dedupe/internal/cmdutil"
	"falcon-dedupe/internal/common"
	"falcon-dedupe/internal/config"
	"falcon-dedupe/internal/hosts"
	"falcon-dedupe/internal/runner"
)

// newDedupeCmd creates the command that hides stale duplicate enrollments
func newDedupeCmd() *cobra.Command {
	var apply bool
	var yes bool
	var verbose bool

	return cmdutil.NewCommand("dedupe", "Hide stale duplicate host enrollments",
		`Query Falcon for hosts matching the filter, keep the most recently seen enrollment
of every hostname and hide the others. One audit line is printed for each enrollment
selected for hiding before any change is made.

Without --apply this is a dry run: the audit lines and the planned batches are
printed and nothing is hidden.`).
		WithExample(`  # Show what would be hidden
  falcon-dedupe dedupe

  # Hide stale duplicates after a confirmation prompt
  falcon-dedupe dedupe --apply

  # Hide without prompting, 50 hosts per request
  falcon-dedupe dedupe --apply --yes --batch-size 50`).
		WithQueryFlags(config.DefaultFilter, config.DefaultLimit).
		WithBatchSizeFlag(config.DefaultBatchSize).
		WithAPIFlags(api.DefaultTimeout, api.DefaultRateLimit).
		WithBoolFlag("apply", false, "Hide the selected hosts; without it nothing is changed", &apply).
		WithBoolFlag("yes", false, "Skip the confirmation prompt", &yes).
		WithBoolFlag("verbose", false, "List every device id in the dry run summary", &verbose).
		WithArgs(cobra.NoArgs).
		WithRunE(cmdutil.WithClient(func(cmd *cobra.Command, args []string, cfg *config.Config, client *api.Client) error {
			log := cmdutil.Logger(cmd)
			svc := hosts.NewService(client, hosts.WithLogger(log))
			r := &runner.Runner{
				Fetcher:  svc,
				Actioner: svc,
				Out:      cmd.OutOrStdout(),
				Logger:   log,
			}

			opts := runner.Options{
				Filter:    cfg.Filter,
				Limit:     cfg.Limit,
				BatchSize: cfg.BatchSize,
				Apply:     apply,
				Verbose:   cmdutil.Verbosity(cmd) >= common.VerbosityVerbose,
				Confirm: func(count int) bool {
					return common.ConfirmBatchOperation(cmd.InOrStdin(), cmd.OutOrStdout(), count, "hosts", "hide", yes)
				},
			}

			_, err := r.Run(cmd.Context(), opts)
			if errors.Is(err, runner.ErrCancelled) {
				return nil
			}
			return err
		})).
		Build()
}
