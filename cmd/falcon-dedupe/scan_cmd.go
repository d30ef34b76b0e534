package main

import (
	"github.com/spf13/cobra"

	"falcon-dedupe/internal/api"
	"falcon-dedupe/internal/cmdutil"
	"falcon-dedupe/internal/common"
	"falcon-dedupe/internal/config"
	"falcon-dedupe/internal/dedupe"
	"falcon-dedupe/internal/hosts"
	"falcon-dedupe/internal/logger"
)

// newScanCmd creates a read-only command listing duplicate hostname groups
func newScanCmd() *cobra.Command {
	var outputFormat string
	var exportFile string

	return cmdutil.NewCommand("scan", "List duplicate hostname groups",
		`Query Falcon for hosts matching the filter and show every hostname enrolled more than
once, with the enrollment that would be kept and the stale ones that would be hidden.
Nothing is changed.`).
		WithExample(`  # Scan the macOS fleet with the default filter
  falcon-dedupe scan

  # Scan a different naming convention and print a table
  falcon-dedupe scan --filter "hostname:'WIN-'" --output table

  # Save the fetched records for offline review with 'select'
  falcon-dedupe scan --export hosts.json`).
		WithQueryFlags(config.DefaultFilter, config.DefaultLimit).
		WithAPIFlags(api.DefaultTimeout, api.DefaultRateLimit).
		WithStringFlag("output", "text", "Output format: text, json, table", &outputFormat).
		WithStringFlag("export", "", "Write the fetched host records to a JSON file", &exportFile).
		WithArgs(cobra.NoArgs).
		WithRunE(cmdutil.WithClient(func(cmd *cobra.Command, args []string, cfg *config.Config, client *api.Client) error {
			format, err := common.ParseOutputFormat(outputFormat)
			if err != nil {
				return err
			}
			log := cmdutil.Logger(cmd)

			records, err := hosts.NewService(client, hosts.WithLogger(log)).Fetch(cmd.Context(), cfg.Filter, cfg.Limit)
			if err != nil {
				return err
			}
			log.Info().Int("records", len(records)).Str("filter", cfg.Filter).Msg("fetched host records")

			if exportFile != "" {
				if err := common.WriteHostRecords(exportFile, records); err != nil {
					return err
				}
				log.Info().Str("file", exportFile).Msg("host records exported")
			}

			groups, err := dedupe.NewSelector(dedupe.WithObserver(logger.SelectionObserver{Log: log})).Groups(records)
			if err != nil {
				return err
			}
			return common.PrintGroups(cmd.OutOrStdout(), format, groups)
		})).
		Build()
}
