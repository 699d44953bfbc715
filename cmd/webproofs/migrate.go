package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/webproof-contributors/internal/server"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the contributions table and its indexes",
		Long: "Create the verified_contributions table in the database named by DATABASE_URL.\n" +
			"SQLite databases are migrated on open as well; Postgres databases are only\n" +
			"migrated by this command. Running it again is harmless.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := mustConfig(cmd)
			logger := commonRun(cfg, cmd.OutOrStdout())

			store, err := server.OpenStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrating: %w", err)
			}

			logger.Info("schema is up to date", slog.Bool("postgres", cfg.UsesPostgres()))
			return nil
		},
	}
}
