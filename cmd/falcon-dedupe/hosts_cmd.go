package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"falcon-dedupe/internal/api"
	"falcon-dedupe/internal/cmdutil"
	"falcon-dedupe/internal/common"
	"falcon-dedupe/internal/config"
	"falcon-dedupe/internal/hosts"
	"falcon-dedupe/internal/runner"
)

// hostAction describes one of the manual device actions
type hostAction struct {
	use    string
	verb   string
	action string
	short  string
}

var (
	actionHide = hostAction{
		use:    "hide",
		verb:   "hide",
		action: hosts.ActionHide,
		short:  "Hide specific hosts by device id",
	}
	actionUnhide = hostAction{
		use:    "unhide",
		verb:   "unhide",
		action: hosts.ActionUnhide,
		short:  "Restore hidden hosts by device id",
	}
)

// newHostActionCmd creates the hide or unhide command
func newHostActionCmd(a hostAction) *cobra.Command {
	var ids []string
	var idsFile string
	var dryRun bool
	var yes bool

	return cmdutil.NewCommand(a.use, a.short,
		fmt.Sprintf(`Run the Falcon %s action on the given device ids, in batches of at most
%d ids per request. Ids can be given with --ids, read from a file with --ids-file
(one per line, a CSV with a device_id column, or a JSON array), or both.`, a.action, hosts.MaxActionIDs)).
		WithExample(fmt.Sprintf(`  # %[1]s two hosts
  falcon-dedupe %[1]s --ids 0123abcd,4567ef01

  # %[1]s every id listed in a file without prompting
  falcon-dedupe %[1]s --ids-file ids.txt --yes

  # Show the planned batches only
  falcon-dedupe %[1]s --ids-file ids.csv --dry-run`, a.use)).
		WithStringSliceFlag("ids", nil, "Comma separated device ids", &ids).
		WithStringFlag("ids-file", "", "File containing device ids", &idsFile).
		WithBoolFlag("dry-run", false, "Show what would be done without making changes", &dryRun).
		WithBoolFlag("yes", false, "Skip the confirmation prompt", &yes).
		WithBatchSizeFlag(config.DefaultBatchSize).
		WithAPIFlags(api.DefaultTimeout, api.DefaultRateLimit).
		WithOneRequiredFlag("ids", "ids-file").
		WithArgs(cobra.NoArgs).
		WithRunE(cmdutil.WithClient(func(cmd *cobra.Command, args []string, cfg *config.Config, client *api.Client) error {
			allIDs, err := collectIDs(ids, idsFile)
			if err != nil {
				return err
			}
			if len(allIDs) == 0 {
				return errors.New("no device ids given")
			}

			svc := hosts.NewService(client, hosts.WithLogger(cmdutil.Logger(cmd)))
			submit := svc.Hide
			if a.action == hosts.ActionUnhide {
				submit = svc.Unhide
			}
			return runHostAction(cmd, cfg.BatchSize, a.verb, allIDs, dryRun, yes, submit)
		})).
		Build()
}

// collectIDs merges ids from the flag and the file, dropping duplicates
func collectIDs(flagIDs []string, idsFile string) ([]string, error) {
	all := append([]string{}, flagIDs...)
	if idsFile != "" {
		fromFile, err := common.ReadItemsFromFile(idsFile, "", nil)
		if err != nil {
			return nil, err
		}
		all = append(all, fromFile...)
	}
	return common.RemoveDuplicates(all), nil
}

func runHostAction(cmd *cobra.Command, batchSize int, verb string, ids []string, dryRun, yes bool, submit common.SubmitFunc) error {
	out := cmd.OutOrStdout()
	log := cmdutil.Logger(cmd)
	verbose := cmdutil.Verbosity(cmd) >= common.VerbosityVerbose

	dry := common.DryRunOptions{
		Enabled:    dryRun,
		Verbose:    verbose,
		ItemType:   "hosts",
		ActionVerb: verb,
		BatchSize:  batchSize,
	}
	if !common.HandleDryRun(out, dry, ids) {
		return nil
	}

	if !common.ConfirmBatchOperation(cmd.InOrStdin(), out, len(ids), "hosts", verb, yes) {
		return nil
	}

	processor := common.NewBatchProcessor().
		WithBatchSize(batchSize).
		WithProgressCallback(func(completed, total, successful int) {
			log.Debug().Int("batch", completed).Int("total", total).Int("succeeded", successful).Msg("batch submitted")
		})

	outcomes, err := processor.Submit(cmd.Context(), ids, submit)
	if err != nil {
		return err
	}
	common.PrintBatchOutcomes(out, verb, outcomes)

	if len(common.FailedOutcomes(outcomes)) > 0 {
		return errors.Wrap(runner.ErrPartialFailure, common.SummarizeBatchOutcomes(outcomes))
	}
	return nil
}
