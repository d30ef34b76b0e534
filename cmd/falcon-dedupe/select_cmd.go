package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"falcon-dedupe/internal/cmdutil"
	"falcon-dedupe/internal/common"
	"falcon-dedupe/internal/dedupe"
	"falcon-dedupe/internal/logger"
)

// newSelectCmd runs the duplicate selection over exported records, offline
func newSelectCmd() *cobra.Command {
	var inputFile string
	var outputFormat string

	return cmdutil.NewCommand("select", "Select stale duplicates from an exported record file",
		`Read a JSON array of host records (device_id, hostname, last_seen) and print the
enrollments that would be hidden. No API call is made and no credentials are needed.`).
		WithExample(`  # Review a scan export
  falcon-dedupe scan --export hosts.json
  falcon-dedupe select --input hosts.json

  # Print the selection as JSON
  falcon-dedupe select --input hosts.json --output json`).
		WithStringFlag("input", "", "JSON file with host records", &inputFile).
		WithStringFlag("output", "text", "Output format: text, json, table", &outputFormat).
		WithRequiredFlag("input").
		WithArgs(cobra.NoArgs).
		WithRunE(func(cmd *cobra.Command, args []string) error {
			format, err := common.ParseOutputFormat(outputFormat)
			if err != nil {
				return err
			}

			records, err := common.ReadHostRecords(inputFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			log := cmdutil.Logger(cmd)
			opts := []dedupe.Option{dedupe.WithObserver(logger.SelectionObserver{Log: log})}
			if format == common.OutputFormatText {
				opts = append(opts, dedupe.WithObserver(common.AuditWriter{W: out}))
			}
			selector := dedupe.NewSelector(opts...)

			switch format {
			case common.OutputFormatTable:
				groups, err := selector.Groups(records)
				if err != nil {
					return err
				}
				return common.PrintGroups(out, format, groups)
			case common.OutputFormatJSON:
				selected, err := selector.Select(records)
				if err != nil {
					return err
				}
				if selected == nil {
					selected = []dedupe.Selection{}
				}
				return common.OutputJSON(out, selected)
			default:
				selected, err := selector.Select(records)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d of %d host records selected\n", len(selected), len(records))
				return nil
			}
		}).
		Build()
}
