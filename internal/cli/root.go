// Package cli implements the qgraph command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/atlekbai/query_graph/internal/config"
)

// RootOptions is shared by all subcommands. Config and Logger are filled in
// before any subcommand runs.
type RootOptions struct {
	Config *config.Config
	Logger *slog.Logger
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "qgraph",
		Short: "Render query documents to SQL",
		Long:  "qgraph turns YAML or JSON query documents into parameterized SQL for a target dialect.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("", cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := cfg.Logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts.Config, opts.Logger = cfg, logger
			return nil
		},
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// settings returns the loaded configuration, or the defaults when the
// command runs outside the root.
func (o *RootOptions) settings() (*config.Config, *slog.Logger, error) {
	cfg := o.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load("", nil); err != nil {
			return nil, nil, err
		}
	}
	logger := o.Logger
	if logger == nil {
		var err error
		if logger, err = cfg.Logger(os.Stderr); err != nil {
			return nil, nil, err
		}
	}
	return cfg, logger, nil
}
