package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the EmberMUSH CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embermush",
		Short: "EmberMUSH - a shared world behind a two-factor gate",
		Long: `EmberMUSH is a multi-user shared environment where every principal
must pass TOTP two-factor authentication before interacting with the world.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}
