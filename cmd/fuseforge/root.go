// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the FuseForge CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fuseforge",
		Short: "FuseForge - player identity and game-state server",
		Long: `FuseForge is the backend for a collectible-character game:
account registration and login, persisted game saves, a purchase
ledger, and character fusion backed by an external generation service.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}
