package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/ledgerbook/internal/infrastructure/config"
	"github.com/iho/ledgerbook/internal/infrastructure/logger"
	"github.com/iho/ledgerbook/internal/infrastructure/postgres"
)

type migrationRunner interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
}

var newMigrator = func(databaseURL, migrationsPath string, log zerolog.Logger) migrationRunner {
	return postgres.NewMigrator(databaseURL, migrationsPath, log)
}

func migrateCmd() *cobra.Command {
	var databaseURL, migrationsPath string

	runner := func() (migrationRunner, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if databaseURL == "" {
			databaseURL = cfg.DatabaseURL
		}
		if migrationsPath == "" {
			migrationsPath = cfg.MigrationsPath
		}
		log := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console", Output: os.Stderr})
		return newMigrator(databaseURL, migrationsPath, log), nil
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres URL (defaults to DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "Migrations directory (defaults to MIGRATIONS_PATH)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := runner()
			if err != nil {
				return err
			}
			return m.Up()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := runner()
			if err != nil {
				return err
			}
			return m.Down()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := runner()
			if err != nil {
				return err
			}
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			if dirty {
				fmt.Fprintf(cmd.OutOrStdout(), "%d (dirty)\n", version)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	})

	return cmd
}
