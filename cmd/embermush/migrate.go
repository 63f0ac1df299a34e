// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/embermush/embermush/internal/config"
	"github.com/embermush/embermush/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Run all pending database migrations against the PostgreSQL database.`,
		RunE:  runMigrate,
	}

	def := config.Default()
	cmd.Flags().String("database.url", def.Database.URL, "PostgreSQL connection URL")
	cmd.Flags().Bool("down", false, "roll back all migrations (destructive)")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			cmd.PrintErrln("warning: error closing migrator:", closeErr)
		}
	}()

	down, _ := cmd.Flags().GetBool("down")
	if down {
		cmd.Println("Rolling back all migrations...")
		if err := migrator.Down(); err != nil {
			return err
		}
		cmd.Println("Rollback completed")
		return nil
	}

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("Database schema up to date")
		return nil
	}

	cmd.Printf("Applying %d pending migration(s)...\n", len(pending))
	if err := migrator.Up(); err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	if dirty {
		cmd.Println("WARNING: database is in a dirty state")
	}
	cmd.Printf("Migrations completed, schema at version %d\n", version)
	return nil
}
