package cmdutil

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"falcon-dedupe/internal/api"
	"falcon-dedupe/internal/common"
	"falcon-dedupe/internal/config"
	"falcon-dedupe/internal/logger"
)

// Verbosity reads the global --verbosity flag; the command's --verbose flag raises it
func Verbosity(cmd *cobra.Command) common.VerbosityLevel {
	verbosityStr, _ := cmd.Flags().GetString("verbosity")
	level := common.ParseVerbosityLevel(verbosityStr)

	if verboseFlag, _ := cmd.Flags().GetBool("verbose"); verboseFlag && level < common.VerbosityVerbose {
		level = common.VerbosityVerbose
	}
	return level
}

// Logger builds the command logger on stderr at the command's verbosity
func Logger(cmd *cobra.Command) zerolog.Logger {
	jsonLogs, _ := cmd.Flags().GetBool("log-json")
	return logger.WithComponent(logger.New(logger.Config{
		Verbosity: Verbosity(cmd),
		Writer:    cmd.ErrOrStderr(),
		JSON:      jsonLogs,
	}), cmd.Name())
}

// LoadConfig reads the configuration for a command, honoring --config and
// any configuration flags the command defines
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	return config.Load(config.LoadOptions{
		ConfigFile: configFile,
		Flags:      cmd.Flags(),
	})
}

// NewClient creates an API client from the configuration. Missing
// credentials fail here, before any network call.
func NewClient(cfg *config.Config) (*api.Client, error) {
	creds, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(
		api.WithBaseURL(cfg.BaseURL),
		api.WithCredentials(creds),
		api.WithTimeout(cfg.Timeout),
		api.WithRateLimit(cfg.RateLimit),
	)
	if err != nil {
		return nil, common.ClientCreationError(err)
	}
	return client, nil
}

// WithVerbose adds a verbose flag extractor to simplify checking verbose mode
func WithVerbose(fn func(*cobra.Command, []string, bool, bool) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		level := Verbosity(cmd)
		return fn(cmd, args, level >= common.VerbosityVerbose, level >= common.VerbosityDebug)
	}
}

// WithConfig wraps a command function to provide the loaded configuration
func WithConfig(fn func(*cobra.Command, []string, *config.Config) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cmd)
		if err != nil {
			return err
		}

		return fn(cmd, args, cfg)
	}
}

// WithClient wraps a command function to provide both config and client
func WithClient(fn func(*cobra.Command, []string, *config.Config, *api.Client) error) func(*cobra.Command, []string) error {
	return WithConfig(func(cmd *cobra.Command, args []string, cfg *config.Config) error {
		client, err := NewClient(cfg)
		if err != nil {
			return err
		}

		log := Logger(cmd)
		log.Debug().
			Str("base_url", cfg.BaseURL).
			Str("client_id", client.Creds.Masked()).
			Msg("API client ready")

		return fn(cmd, args, cfg, client)
	})
}
