// Package config loads the descgen client configuration from defaults, a
// .env file, DESCGEN_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/celestiaorg/descgen/pkg/api/v1/routes"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "DESCGEN"

// Configuration keys. Flags use the same names with dashes.
const (
	KeyServerAddress     = "server_address"
	KeyRequestTimeout    = "request_timeout"
	KeyPollInterval      = "poll_interval"
	KeyCostPollInterval  = "cost_poll_interval"
	KeyCostMaxAttempts   = "cost_max_attempts"
	KeySelectionCapacity = "selection_capacity"
	KeyLogLevel          = "log_level"
)

// Defaults
const (
	DefaultRequestTimeout    = 30 * time.Second
	DefaultPollInterval      = 2 * time.Second
	DefaultCostPollInterval  = 2 * time.Second
	DefaultCostMaxAttempts   = 30
	DefaultSelectionCapacity = 50
	DefaultLogLevel          = "info"
)

// Config holds the client configuration
type Config struct {
	ServerAddress     string        `mapstructure:"server_address" validate:"required,url"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	CostPollInterval  time.Duration `mapstructure:"cost_poll_interval" validate:"gt=0"`
	CostMaxAttempts   int           `mapstructure:"cost_max_attempts" validate:"gte=1"`
	SelectionCapacity int           `mapstructure:"selection_capacity" validate:"gte=1"`
	LogLevel          string        `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
}

var keys = []string{
	KeyServerAddress,
	KeyRequestTimeout,
	KeyPollInterval,
	KeyCostPollInterval,
	KeyCostMaxAttempts,
	KeySelectionCapacity,
	KeyLogLevel,
}

// FlagName returns the command line flag name for a configuration key
func FlagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// LoadDotEnv loads environment variables from the given files, or from .env
// when none is given. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration. Precedence is flag > env > default; flags
// that were not set on the command line do not override anything.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyServerAddress, routes.DefaultBaseURL)
	v.SetDefault(KeyRequestTimeout, DefaultRequestTimeout)
	v.SetDefault(KeyPollInterval, DefaultPollInterval)
	v.SetDefault(KeyCostPollInterval, DefaultCostPollInterval)
	v.SetDefault(KeyCostMaxAttempts, DefaultCostMaxAttempts)
	v.SetDefault(KeySelectionCapacity, DefaultSelectionCapacity)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)

	if flags != nil {
		for _, key := range keys {
			if f := flags.Lookup(FlagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed on %s (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
