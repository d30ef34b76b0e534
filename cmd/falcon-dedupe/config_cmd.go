package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"falcon-dedupe/internal/api"
	"falcon-dedupe/internal/cmdutil"
	"falcon-dedupe/internal/common"
	"falcon-dedupe/internal/config"
)

// newConfigCmd is the command for managing configuration
func newConfigCmd() *cobra.Command {
	return cmdutil.NewCommand("config", "Show or create the configuration file",
		`Settings are read, lowest precedence first, from built-in defaults, the config file,
a .env file, FALCON_* environment variables and command line flags.`).
		WithSubCommand(newConfigShowCmd()).
		WithSubCommand(newConfigInitCmd()).
		Build()
}

// newConfigShowCmd displays the effective configuration with secrets masked
func newConfigShowCmd() *cobra.Command {
	var outputFormat string

	return cmdutil.NewCommand("show", "Show current configuration",
		`Display the effective configuration. The client id and secret are masked.`).
		WithQueryFlags(config.DefaultFilter, config.DefaultLimit).
		WithBatchSizeFlag(config.DefaultBatchSize).
		WithAPIFlags(api.DefaultTimeout, api.DefaultRateLimit).
		WithStringFlag("output", "text", "Output format: text, json, table", &outputFormat).
		WithArgs(cobra.NoArgs).
		WithRunE(cmdutil.WithConfig(func(cmd *cobra.Command, args []string, cfg *config.Config) error {
			format, err := common.ParseOutputFormat(outputFormat)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			settings := cfg.Settings()
			if format == common.OutputFormatJSON {
				return common.OutputJSON(out, settings)
			}

			keys := make([]string, 0, len(settings))
			for k := range settings {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			if format == common.OutputFormatTable {
				rows := make([][]string, 0, len(keys))
				for _, k := range keys {
					rows = append(rows, []string{k, displayValue(settings[k])})
				}
				common.FormatTable(out, []string{"KEY", "VALUE"}, rows)
				return nil
			}

			fmt.Fprintln(out, "Current configuration:")
			if cfg.File != "" {
				fmt.Fprintf(out, "  (from %s)\n", cfg.File)
			}
			for _, k := range keys {
				fmt.Fprintf(out, "  %s: %s\n", k, displayValue(settings[k]))
			}
			if _, err := cfg.Credentials(); err != nil {
				fmt.Fprintf(out, "\nWarning: %v\n", err)
			}
			return nil
		})).
		Build()
}

func displayValue(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

// newConfigInitCmd writes the non-secret settings to a config file
func newConfigInitCmd() *cobra.Command {
	var path string
	var force bool

	return cmdutil.NewCommand("init", "Write a configuration file",
		`Write the effective non-secret settings (cloud, filter, limits) to a YAML file.
Credentials are never written; keep them in the environment or a .env file.`).
		WithQueryFlags(config.DefaultFilter, config.DefaultLimit).
		WithBatchSizeFlag(config.DefaultBatchSize).
		WithAPIFlags(api.DefaultTimeout, api.DefaultRateLimit).
		WithStringFlag("path", "", "Destination file (default $HOME/.falcon-dedupe.yaml)", &path).
		WithBoolFlag("force", false, "Overwrite an existing file", &force).
		WithArgs(cobra.NoArgs).
		WithRunE(cmdutil.WithConfig(func(cmd *cobra.Command, args []string, cfg *config.Config) error {
			dest := path
			if dest == "" {
				var err error
				if dest, err = config.DefaultPath(); err != nil {
					return err
				}
			}

			if _, err := os.Stat(dest); err == nil && !force {
				return errors.Newf("%s already exists, use --force to overwrite it", dest)
			}

			if err := cfg.SaveToFile(dest); err != nil {
				return errors.Wrap(err, "failed to save config")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", dest)
			return nil
		})).
		Build()
}
