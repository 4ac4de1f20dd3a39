// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BoostyLabs/anchor/bitcoin/anchor/resolver"
	"github.com/BoostyLabs/anchor/internal/api"
	"github.com/BoostyLabs/anchor/internal/db"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve query API",
		Long:  "Serves anchor resolution and reply threads over HTTP until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.API.Listen = listen
			}

			store, conn, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(conn) }()

			r := resolver.New(store, resolver.WithLogger(logger), resolver.WithDefaultBudget(cfg.Budget()))
			server, err := api.NewServer(cfg.API.Listen, r, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address, config value if empty")
	return cmd
}
