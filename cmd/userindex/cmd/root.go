// Package cmd provides the userindex CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/userindex/internal/config"
	"github.com/syntrixbase/userindex/internal/logging"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "userindex",
		Short: "Searchable index of user records",
		Long: `userindex keeps a search index of user records in sync with the
primary MongoDB collection and serves ranked, paginated user search.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the configuration file")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newSyncCmd(&configPath))
	cmd.AddCommand(newSearchCmd(&configPath))

	return cmd
}

// Execute runs the root command until SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// loadConfig loads the configuration and installs the logger. One-shot
// commands keep stdout for their output, so console logging is turned off.
func loadConfig(path string, oneShot bool) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	if oneShot {
		cfg.Logging.Console.Enabled = false
	}

	logger, err := logging.Initialize(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
