package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/userindex/internal/services"
)

func newSyncCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one bulk sync from the primary store into the index",
		Long: `Run one bulk sync and print its report as JSON.

The index is opened directly, so stop a running server that uses the same
on-disk index first, or trigger the sync through the admin API instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath, true)
			if err != nil {
				return err
			}

			mgr := services.NewManager(cfg, services.Options{}, logger)
			defer mgr.Shutdown(cmd.Context())
			if err := mgr.Init(cmd.Context()); err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}

			report, runErr := mgr.BulkSync().Run(cmd.Context())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			return runErr
		},
	}
}
