package cmdutil

import (
	"time"

	"github.com/spf13/cobra"
)

// CommandBuilder provides a fluent interface for building commands
type CommandBuilder struct {
	cmd *cobra.Command
}

// NewCommand creates a new command builder with the given use, short, and long descriptions
func NewCommand(use, short, long string) *CommandBuilder {
	return &CommandBuilder{
		cmd: &cobra.Command{
			Use:   use,
			Short: short,
			Long:  long,
		},
	}
}

// WithRunE sets the RunE function for the command
func (b *CommandBuilder) WithRunE(runE func(*cobra.Command, []string) error) *CommandBuilder {
	b.cmd.RunE = runE
	return b
}

// WithExample sets the example for the command
func (b *CommandBuilder) WithExample(example string) *CommandBuilder {
	b.cmd.Example = example
	return b
}

// WithArgs sets the positional argument validator
func (b *CommandBuilder) WithArgs(args cobra.PositionalArgs) *CommandBuilder {
	b.cmd.Args = args
	return b
}

// WithStringFlag adds a string flag to the command
func (b *CommandBuilder) WithStringFlag(name, value, usage string, variable *string) *CommandBuilder {
	b.cmd.Flags().StringVar(variable, name, value, usage)
	return b
}

// WithStringSliceFlag adds a string slice flag to the command
func (b *CommandBuilder) WithStringSliceFlag(name string, value []string, usage string, variable *[]string) *CommandBuilder {
	b.cmd.Flags().StringSliceVar(variable, name, value, usage)
	return b
}

// WithBoolFlag adds a boolean flag to the command
func (b *CommandBuilder) WithBoolFlag(name string, value bool, usage string, variable *bool) *CommandBuilder {
	b.cmd.Flags().BoolVar(variable, name, value, usage)
	return b
}

// WithQueryFlags adds the --filter and --limit flags read by config.Load
func (b *CommandBuilder) WithQueryFlags(defaultFilter string, defaultLimit int) *CommandBuilder {
	b.cmd.Flags().String("filter", defaultFilter, "FQL filter selecting the hosts to inspect")
	b.cmd.Flags().Int("limit", defaultLimit, "Maximum number of hosts returned by the query (1-5000)")
	return b
}

// WithBatchSizeFlag adds the --batch-size flag read by config.Load
func (b *CommandBuilder) WithBatchSizeFlag(defaultBatchSize int) *CommandBuilder {
	b.cmd.Flags().Int("batch-size", defaultBatchSize, "Device ids per action request (1-100)")
	return b
}

// WithAPIFlags adds the --timeout and --rate-limit flags read by config.Load
func (b *CommandBuilder) WithAPIFlags(defaultTimeout time.Duration, defaultRate float64) *CommandBuilder {
	b.cmd.Flags().Duration("timeout", defaultTimeout, "Timeout for each API call")
	b.cmd.Flags().Float64("rate-limit", defaultRate, "Maximum API requests per second (0 disables pacing)")
	return b
}

// WithRequiredFlag marks a flag as required
func (b *CommandBuilder) WithRequiredFlag(name string) *CommandBuilder {
	_ = b.cmd.MarkFlagRequired(name)
	return b
}

// WithOneRequiredFlag requires at least one of the named flags
func (b *CommandBuilder) WithOneRequiredFlag(names ...string) *CommandBuilder {
	b.cmd.MarkFlagsOneRequired(names...)
	return b
}

// WithSubCommand adds a subcommand to the command
func (b *CommandBuilder) WithSubCommand(subCmd *cobra.Command) *CommandBuilder {
	b.cmd.AddCommand(subCmd)
	return b
}

// Build returns the built cobra.Command
func (b *CommandBuilder) Build() *cobra.Command {
	return b.cmd
}
