// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/fuseforge/fuseforge/internal/auth"
	authpg "github.com/fuseforge/fuseforge/internal/auth/postgres"
	"github.com/fuseforge/fuseforge/internal/catalog"
	catalogpg "github.com/fuseforge/fuseforge/internal/catalog/postgres"
	"github.com/fuseforge/fuseforge/internal/collection"
	collectionpg "github.com/fuseforge/fuseforge/internal/collection/postgres"
	"github.com/fuseforge/fuseforge/internal/config"
	"github.com/fuseforge/fuseforge/internal/fusion"
	"github.com/fuseforge/fuseforge/internal/generator"
	"github.com/fuseforge/fuseforge/internal/ledger"
	ledgerpg "github.com/fuseforge/fuseforge/internal/ledger/postgres"
	"github.com/fuseforge/fuseforge/internal/logging"
	"github.com/fuseforge/fuseforge/internal/observability"
	"github.com/fuseforge/fuseforge/internal/payment"
	"github.com/fuseforge/fuseforge/internal/server"
	"github.com/fuseforge/fuseforge/internal/store"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the game API server",
		Long: `Start the game API server: runs pending database migrations,
seeds the character catalog, and serves the HTTP API plus a separate
metrics/health listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	// Flag names mirror config keys so they layer over file values.
	flags := cmd.Flags()
	flags.String("database.url", "", "PostgreSQL connection URL")
	flags.String("server.addr", "", "game API listen address")
	flags.String("server.asset_dir", "", "directory for generated sprite sheets")
	flags.String("observability.addr", "", "metrics/health listen address (empty = disabled)")
	flags.String("session.secret", "", "session token signing secret")
	flags.String("generator.content_url", "", "content generation service URL")
	flags.String("generator.sprite_url", "", "sprite generation service URL (empty = disabled)")
	flags.String("generator.api_key", "", "generation service API key")
	flags.String("log.format", "", "log format (json or text)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Generator.ContentURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("generator.content_url is required")
	}

	logger := logging.Setup("fuseforge", version, cfg.Log.Format, nil)
	slog.SetDefault(logger)

	logger.Info("starting server",
		"addr", cfg.Server.Addr,
		"log_format", cfg.Log.Format,
	)

	pool, err := store.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	logger.Info("connected to database")

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

	logger.Info("migrations applied")

	deps, err := buildDeps(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured. The API server records its
	// request metrics against the observability registry.
	var obsServer *observability.Server
	if cfg.Observability.Addr != "" {
		obsServer = observability.NewServer(cfg.Observability.Addr, func() bool { return true })
		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return obsErr
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		deps.Metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	apiServer, err := server.NewServer(cfg.Server.Addr, *deps)
	if err != nil {
		stopObservability(obsServer, logger)
		return err
	}

	apiErrChan, err := apiServer.Start()
	if err != nil {
		stopObservability(obsServer, logger)
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	logger.Info("server ready", "addr", apiServer.Addr())

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping API server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// buildDeps wires the repositories and services behind the HTTP API.
func buildDeps(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*server.Deps, error) {
	directory, err := auth.NewDirectory(authpg.NewAccountRepository(pool), auth.NewPBKDF2Hasher())
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenIssuer([]byte(cfg.Session.Secret))
	if err != nil {
		return nil, err
	}

	saves, err := collection.NewStore(collectionpg.NewSaveRepository(pool))
	if err != nil {
		return nil, err
	}

	ledgerSvc, err := ledger.NewService(ledgerpg.NewEntryRepository(pool))
	if err != nil {
		return nil, err
	}

	templates := catalogpg.NewTemplateRepository(pool)
	if err := catalog.Seed(ctx, templates, logger); err != nil {
		return nil, err
	}

	content, err := generator.NewContentClient(cfg.Generator.ContentURL, cfg.Generator.APIKey)
	if err != nil {
		return nil, err
	}

	// Sprite generation is optional; fusion falls back to source sprites.
	var sprites fusion.SpriteGenerator
	if cfg.Generator.SpriteURL != "" {
		spriteClient, spriteErr := generator.NewSpriteClient(
			cfg.Generator.SpriteURL, cfg.Generator.APIKey, cfg.Server.AssetDir)
		if spriteErr != nil {
			return nil, spriteErr
		}
		sprites = spriteClient
	}

	fusions, err := fusion.NewCoordinator(templates, saves, content, sprites, store.NewTransactor(pool), logger)
	if err != nil {
		return nil, err
	}

	payments, err := payment.NewService(directory, ledgerSvc, logger)
	if err != nil {
		return nil, err
	}

	return &server.Deps{
		Directory: directory,
		Tokens:    tokens,
		Saves:     saves,
		Ledger:    ledgerSvc,
		Templates: templates,
		Fusions:   fusions,
		Payments:  payments,
		Logger:    logger,
	}, nil
}

func closeQuietly(migrator *store.Migrator, logger *slog.Logger) {
	if err := migrator.Close(); err != nil {
		logger.Warn("error closing migrator", "error", err)
	}
}

func stopObservability(obsServer *observability.Server, logger *slog.Logger) {
	if obsServer == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := obsServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels the context when a server reports an error,
// so one failed listener shuts the whole process down. It exits when the
// channel closes or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
