package main

import (
	"fmt"
	"log/slog"

	"github.com/livefire2015/ez-cards/src/config"
	"github.com/livefire2015/ez-cards/src/store/postgres"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cmd, args); err != nil {
				return err
			}
			if cfg.Storage.Backend != config.BackendPostgres {
				return fmt.Errorf("migrations need the postgres backend, got %s", cfg.Storage.Backend)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := postgres.RunMigrations(cfg.Storage.DatabaseURL); err != nil {
				return err
			}
			return logVersion()
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Revert applied migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if err := postgres.RollbackMigrations(cfg.Storage.DatabaseURL, steps); err != nil {
				return err
			}
			return logVersion()
		},
	}
	down.Flags().Int("steps", 1, "number of migrations to revert")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		RunE: func(_ *cobra.Command, _ []string) error {
			return logVersion()
		},
	})

	return cmd
}

func logVersion() error {
	version, dirty, err := postgres.MigrationVersion(cfg.Storage.DatabaseURL)
	if err != nil {
		return err
	}
	slog.Info("schema version", "version", version, "dirty", dirty)
	return nil
}
