package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atlekbai/query_graph/internal/handler"
	"github.com/atlekbai/query_graph/internal/server"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Serve the render API over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.settings()
			if err != nil {
				return err
			}
			d, err := cfg.SQLDialect()
			if err != nil {
				return err
			}
			cache, err := loadCatalog(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}
			h := handler.New(d, cache, logger)
			return server.New(cfg.Addr(), h, logger).Serve(cmd.Context())
		},
	}
}
