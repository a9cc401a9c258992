// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/fuseforge/fuseforge/internal/catalog"
	catalogpg "github.com/fuseforge/fuseforge/internal/catalog/postgres"
	"github.com/fuseforge/fuseforge/internal/config"
	"github.com/fuseforge/fuseforge/internal/logging"
	"github.com/fuseforge/fuseforge/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the character catalog",
		Long: `Inserts the starting character templates into an empty catalog.
This command is idempotent - a non-empty catalog is left untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")

	return cmd
}

func runSeed(cmd *cobra.Command, timeout time.Duration) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	logger := logging.Setup("fuseforge", version, cfg.Log.Format, nil)

	cmd.Println("Connecting to database...")
	pool, err := store.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	cmd.Println("Running migrations...")
	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		closeQuietly(migrator, logger)
		return err
	}
	if err := migrator.Close(); err != nil {
		logger.Warn("error closing migrator", "error", err)
	}

	if err := catalog.Seed(ctx, catalogpg.NewTemplateRepository(pool), logger); err != nil {
		return err
	}

	cmd.Println("Catalog seeding complete")
	return nil
}
