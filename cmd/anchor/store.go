// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/BoostyLabs/anchor/internal/config"
	"github.com/BoostyLabs/anchor/internal/db"
)

// openStore connects to configured database, migrates it and returns message store.
// Caller must close returned connection.
func openStore(cfg *config.Config, logger *slog.Logger) (*db.Store, *gorm.DB, error) {
	conn, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}

	if err = db.AutoMigrate(conn); err != nil {
		_ = db.Close(conn)
		return nil, nil, err
	}

	store, err := db.NewStore(conn, cfg.Database.CacheSize, logger)
	if err != nil {
		_ = db.Close(conn)
		return nil, nil, err
	}

	logger.Debug("message store opened", "driver", cfg.Database.Driver)
	return store, conn, nil
}

func newDBCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update message store tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			_, conn, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(conn) }()

			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables\n", len(db.AllModels()))
			return nil
		},
	})
	return cmd
}
