package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/atlekbai/query_graph/internal/config"
	"github.com/atlekbai/query_graph/internal/handler"
	"github.com/atlekbai/query_graph/internal/schema"
	"github.com/atlekbai/query_graph/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	config.RegisterFlags(flags)
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load("", flags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	d, err := cfg.SQLDialect()
	if err != nil {
		return err
	}

	var cache *schema.Cache
	if cfg.Catalog.Driver != "" {
		cache, err = schema.LoadFrom(ctx, cfg.Catalog.Driver, cfg.Catalog.DSN)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		logger.Info("catalog loaded", "driver", cfg.Catalog.Driver, "objects", cache.ObjectCount())
	}

	h := handler.New(d, cache, logger)
	return server.New(cfg.Addr(), h, logger).Serve(ctx)
}
