package main

import (
	"github.com/spf13/cobra"

	"coursehub/internal/config"
	"coursehub/internal/database"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().String("database-url", "", "Postgres connection URL")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m *database.Migrator) error {
			if err := m.Up(); err != nil {
				return err
			}
			cmd.Println("Migrations applied")
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m *database.Migrator) error {
			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("Migrations rolled back")
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: withMigrator(func(cmd *cobra.Command, m *database.Migrator) error {
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			cmd.Printf("version %d", v)
			if dirty {
				cmd.Print(" (dirty)")
			}
			cmd.Println()
			return nil
		}),
	})
	return cmd
}

// withMigrator opens a migrator for the configured database, runs fn and
// closes the migrator again.
func withMigrator(fn func(cmd *cobra.Command, m *database.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return err
		}

		m, err := database.NewMigrator(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer m.Close()

		return fn(cmd, m)
	}
}
