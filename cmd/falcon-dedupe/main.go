package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"falcon-dedupe/internal/api"
	"falcon-dedupe/internal/common"
	"falcon-dedupe/internal/config"
)

// Version information (set by ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// newRootCmd builds the command tree
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "falcon-dedupe",
		Short: "Find and hide duplicate CrowdStrike Falcon host enrollments",
		Long: `A command-line tool that finds hosts enrolled more than once in CrowdStrike Falcon
under the same hostname and hides every enrollment except the one that checked in most
recently. Credentials are read from FALCON_CLIENT_ID and FALCON_CLIENT_SECRET, from a
.env file, or from the configuration file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate(versionText())

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("verbosity", "normal", "Verbosity level: quiet, normal, verbose, debug")
	flags.String("config", "", "Config file (default $HOME/.falcon-dedupe.yaml)")
	flags.String("cloud", config.DefaultCloud, "Falcon cloud: us-1, us-2, eu-1, us-gov-1")
	flags.String("base-url", "", "Falcon API base URL, overrides --cloud")
	flags.Bool("log-json", false, "Write logs to stderr as JSON lines")

	rootCmd.AddCommand(
		newVersionCmd(),
		newScanCmd(),
		newDedupeCmd(),
		newHostActionCmd(actionHide),
		newHostActionCmd(actionUnhide),
		newSelectCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func versionText() string {
	return fmt.Sprintf("falcon-dedupe version %s\n  commit: %s\n  built:  %s\n", version, commit, date)
}

// newVersionCmd represents the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), versionText())
		},
	}
}

// reportError prints a failed command's error. Every (code, message) pair
// reported by the API gets its own line.
func reportError(w io.Writer, err error) {
	if common.PrintAPIErrors(w, err) {
		var respErr *api.ResponseError
		if errors.As(err, &respErr) && respErr.Hint != "" {
			fmt.Fprintln(w, respErr.Hint)
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

// execute runs the command tree and returns the process exit code
func execute(rootCmd *cobra.Command, args []string) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		reportError(rootCmd.ErrOrStderr(), err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd(), os.Args[1:]))
}
