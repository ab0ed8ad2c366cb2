package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/descgen/internal/config"
	"github.com/celestiaorg/descgen/internal/logger"
	"github.com/celestiaorg/descgen/pkg/api/v1/client"
)

var (
	// apiClient is the shared API client instance
	apiClient client.Client
	// cfg is the configuration resolved by PersistentPreRunE
	cfg *config.Config

	// newAPIClient builds the client from the resolved configuration.
	// Tests replace it to inject a mock.
	newAPIClient = func(opts *client.Options) (client.Client, error) {
		return client.NewClient(opts)
	}
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = NewRootCmd()

// NewRootCmd builds the command tree with fresh flag state
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "descgen",
		Short: "descgen - submit and track product description generation jobs",
		Long: `descgen submits catalog items for AI description generation and tracks
the resulting jobs until they finish, including their cost estimate.

Configuration is read from flags, DESCGEN_* environment variables and a .env file.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initClient,
	}

	flags := cmd.PersistentFlags()
	flags.StringP(config.FlagName(config.KeyServerAddress), "s", "", "Address of the generation API server (env: DESCGEN_SERVER_ADDRESS)")
	flags.Duration(config.FlagName(config.KeyRequestTimeout), config.DefaultRequestTimeout, "Timeout of a single API request")
	flags.Duration(config.FlagName(config.KeyPollInterval), config.DefaultPollInterval, "Delay between two job progress fetches")
	flags.Duration(config.FlagName(config.KeyCostPollInterval), config.DefaultCostPollInterval, "Delay between two cost estimate fetches")
	flags.Int(config.FlagName(config.KeyCostMaxAttempts), config.DefaultCostMaxAttempts, "Number of cost estimate fetches before giving up")
	flags.Int(config.FlagName(config.KeySelectionCapacity), config.DefaultSelectionCapacity, "Maximum number of items in one submission")
	flags.String(config.FlagName(config.KeyLogLevel), config.DefaultLogLevel, "Log level (trace, debug, info, warn, error)")

	cmd.AddCommand(newJobsCmd())
	return cmd
}

// initClient resolves the configuration, configures logging and creates the
// API client. Precedence is flag > env > default.
func initClient(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	cfg = loaded

	logger.InitializeAndConfigure(cfg.LogLevel)
	logger.DebugWithFields("Configuration loaded", map[string]interface{}{
		"server_address":  cfg.ServerAddress,
		"request_timeout": cfg.RequestTimeout.String(),
		"poll_interval":   cfg.PollInterval.String(),
	})

	apiClient, err = newAPIClient(&client.Options{
		BaseURL: cfg.ServerAddress,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("error creating API client: %w", err)
	}
	return nil
}

// Execute runs the root command. Cancelling ctx stops any running poller.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}
