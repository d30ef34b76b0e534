package config

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"falcon-dedupe/internal/auth"
)

const (
	// EnvPrefix is prepended to every configuration key when read from the environment
	EnvPrefix = "FALCON"

	// DefaultCloud is the Falcon cloud used when neither cloud nor base_url is set
	DefaultCloud = "us-1"

	// DefaultFilter matches the macOS fleet naming convention
	DefaultFilter = "hostname:'MAC-'"

	// DefaultLimit is the result cap of the host query endpoint
	DefaultLimit = 5000

	// DefaultBatchSize is the largest id list accepted by the host action endpoint
	DefaultBatchSize = 100

	// DefaultEnvFile is loaded into the environment when present
	DefaultEnvFile = ".env"

	configName = ".falcon-dedupe"
)

// Configuration keys
const (
	KeyClientID     = "client_id"
	KeyClientSecret = "client_secret"
	KeyMemberCID    = "member_cid"
	KeyCloud        = "cloud"
	KeyBaseURL      = "base_url"
	KeyFilter       = "filter"
	KeyLimit        = "limit"
	KeyBatchSize    = "batch_size"
	KeyTimeout      = "timeout"
	KeyRateLimit    = "rate_limit"
)

// Clouds maps Falcon cloud names to API base URLs
var Clouds = map[string]string{
	"us-1":     "https://api.crowdstrike.com",
	"us-2":     "https://api.us-2.crowdstrike.com",
	"eu-1":     "https://api.eu-1.crowdstrike.com",
	"us-gov-1": "https://api.laggar.gcw.crowdstrike.com",
}

// flagKeys maps command line flag names to configuration keys
var flagKeys = map[string]string{
	"cloud":      KeyCloud,
	"base-url":   KeyBaseURL,
	"filter":     KeyFilter,
	"limit":      KeyLimit,
	"batch-size": KeyBatchSize,
	"timeout":    KeyTimeout,
	"rate-limit": KeyRateLimit,
}

// Config holds the application configuration
type Config struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	MemberCID    string        `mapstructure:"member_cid"`
	Cloud        string        `mapstructure:"cloud"`
	BaseURL      string        `mapstructure:"base_url"`
	Filter       string        `mapstructure:"filter"`
	Limit        int           `mapstructure:"limit"`
	BatchSize    int           `mapstructure:"batch_size"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"`

	// File is the configuration file that was read, if any
	File string `mapstructure:"-"`
}

// LoadOptions controls where configuration is read from
type LoadOptions struct {
	// ConfigFile is an explicit configuration file; it must exist when set
	ConfigFile string
	// EnvFile is a dotenv file loaded before reading the environment
	EnvFile string
	// Flags are bound over every other source when changed
	Flags *pflag.FlagSet
}

// New creates a Config with default values
func New() *Config {
	return &Config{
		Cloud:     DefaultCloud,
		BaseURL:   Clouds[DefaultCloud],
		Filter:    DefaultFilter,
		Limit:     DefaultLimit,
		BatchSize: DefaultBatchSize,
		Timeout:   60 * time.Second,
		RateLimit: 50,
	}
}

func setDefaults(v *viper.Viper) {
	d := New()
	v.SetDefault(KeyClientID, "")
	v.SetDefault(KeyClientSecret, "")
	v.SetDefault(KeyMemberCID, "")
	v.SetDefault(KeyCloud, d.Cloud)
	v.SetDefault(KeyBaseURL, "")
	v.SetDefault(KeyFilter, d.Filter)
	v.SetDefault(KeyLimit, d.Limit)
	v.SetDefault(KeyBatchSize, d.BatchSize)
	v.SetDefault(KeyTimeout, d.Timeout)
	v.SetDefault(KeyRateLimit, d.RateLimit)
}

// Load reads configuration from defaults, an optional YAML file, the
// environment (FALCON_*), and finally changed command line flags
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if fileExists(envFile) {
		// Existing environment variables win over the dotenv file
		if err := godotenv.Load(envFile); err != nil {
			return nil, errors.Wrapf(err, "loading %s", envFile)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", opts.ConfigFile)
		}
	} else if homeDir, err := os.UserHomeDir(); err == nil {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(homeDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "reading config file")
			}
		}
	}

	if opts.Flags != nil {
		for flagName, key := range flagKeys {
			if f := opts.Flags.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "binding flag --%s", flagName)
				}
			}
		}
	}

	cfg := New()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decoding configuration")
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.BaseURL == "" {
		base, ok := Clouds[strings.ToLower(cfg.Cloud)]
		if !ok {
			return nil, errors.Newf("unknown Falcon cloud %q (expected one of %s)", cfg.Cloud, strings.Join(CloudNames(), ", "))
		}
		cfg.BaseURL = base
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the non-credential settings
func (c *Config) Validate() error {
	if c.Limit < 1 || c.Limit > DefaultLimit {
		return errors.Newf("limit must be between 1 and %d, got %d", DefaultLimit, c.Limit)
	}
	if c.BatchSize < 1 || c.BatchSize > DefaultBatchSize {
		return errors.Newf("batch_size must be between 1 and %d, got %d", DefaultBatchSize, c.BatchSize)
	}
	if strings.TrimSpace(c.Filter) == "" {
		return errors.New("filter must not be empty")
	}
	if c.Timeout <= 0 {
		return errors.Newf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// Credentials returns the API credentials, failing when either required value is missing
func (c *Config) Credentials() (*auth.CredentialInfo, error) {
	creds := &auth.CredentialInfo{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		MemberCID:    c.MemberCID,
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return creds, nil
}

// Settings returns the effective configuration with the secrets masked
func (c *Config) Settings() map[string]string {
	return map[string]string{
		KeyClientID:     auth.Mask(c.ClientID),
		KeyClientSecret: auth.Mask(c.ClientSecret),
		KeyMemberCID:    c.MemberCID,
		KeyCloud:        c.Cloud,
		KeyBaseURL:      c.BaseURL,
		KeyFilter:       c.Filter,
		KeyLimit:        strconv.Itoa(c.Limit),
		KeyBatchSize:    strconv.Itoa(c.BatchSize),
		KeyTimeout:      c.Timeout.String(),
		KeyRateLimit:    strconv.FormatFloat(c.RateLimit, 'f', -1, 64),
	}
}

// SaveToFile writes the non-secret settings to a YAML file
func (c *Config) SaveToFile(path string) error {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return err
		}
	}

	v := viper.New()
	v.Set(KeyCloud, c.Cloud)
	v.Set(KeyBaseURL, c.BaseURL)
	v.Set(KeyFilter, c.Filter)
	v.Set(KeyLimit, c.Limit)
	v.Set(KeyBatchSize, c.BatchSize)
	v.Set(KeyTimeout, c.Timeout.String())
	v.Set(KeyRateLimit, c.RateLimit)
	if c.MemberCID != "" {
		v.Set(KeyMemberCID, c.MemberCID)
	}
	v.SetConfigType("yaml")

	if err := v.WriteConfigAs(path); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return os.Chmod(path, 0600)
}

// DefaultPath is the config file read when --config is not given
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("cannot determine home directory for config file")
	}
	return filepath.Join(homeDir, configName+".yaml"), nil
}

// CloudNames returns the known cloud names, sorted
func CloudNames() []string {
	names := make([]string, 0, len(Clouds))
	for name := range Clouds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
