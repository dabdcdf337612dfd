package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/userindex/internal/query"
	"github.com/syntrixbase/userindex/internal/services"
)

type searchOptions struct {
	page  int
	limit int
	sync  bool
}

func newSearchCmd(configPath *string) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [term]",
		Short: "Query the index and print one page of users as JSON",
		Long: `Query the index and print one page of users as JSON.

Without a term the most recently updated users are listed.

Examples:
  userindex search
  userindex search ana --page 2 --limit 5
  userindex search "@example.com" --sync`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath, true)
			if err != nil {
				return err
			}

			mgr := services.NewManager(cfg, services.Options{}, logger)
			defer mgr.Shutdown(cmd.Context())
			if err := mgr.Init(cmd.Context()); err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}
			if opts.sync {
				if _, err := mgr.BulkSync().Run(cmd.Context()); err != nil {
					return fmt.Errorf("bulk sync: %w", err)
				}
			}

			page, err := mgr.Engine().Search(cmd.Context(), query.Request{
				Query: strings.Join(args, " "),
				Page:  opts.page,
				Limit: opts.limit,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(page)
		},
	}

	cmd.Flags().IntVarP(&opts.page, "page", "p", 1, "Page number, starting at 1")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Users per page")
	cmd.Flags().BoolVar(&opts.sync, "sync", false, "Run a bulk sync before querying (useful with an in-memory index)")

	return cmd
}
