package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/userindex/internal/services"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync pipelines and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, logger, err := loadConfig(configPath, false)
	if err != nil {
		return err
	}

	mgr := services.NewManager(cfg, services.ServeOptions(), logger)

	initCtx, cancel := context.WithTimeout(ctx, cfg.Storage.ConnectTimeout+cfg.Enrich.Timeout)
	defer cancel()
	if err := mgr.Init(initCtx); err != nil {
		mgr.Shutdown(context.Background())
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	logger.Info("Starting userindex", "addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort))
	if err := mgr.Start(bgCtx); err != nil {
		bgCancel()
		mgr.Shutdown(context.Background())
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down services...")
	case serveErr = <-mgr.ServerErrors():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Cancel background tasks first
	bgCancel()
	mgr.Shutdown(shutdownCtx)
	return serveErr
}
