// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/storeloft/storeloft/internal/config"
	"github.com/storeloft/storeloft/internal/extension"
	"github.com/storeloft/storeloft/internal/extension/capability"
	extpg "github.com/storeloft/storeloft/internal/extension/postgres"
	"github.com/storeloft/storeloft/internal/extension/resolver"
	"github.com/storeloft/storeloft/internal/logging"
	"github.com/storeloft/storeloft/internal/observability"
	"github.com/storeloft/storeloft/internal/server"
	"github.com/storeloft/storeloft/internal/store"
	"github.com/storeloft/storeloft/plugins/loyaltypoints"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Storeloft API server",
		Long: `Start the API server: tenant plugin lifecycle endpoints, public
storefront endpoints, and the observability endpoint.`,
		RunE: runServe,
	}
	cmd.Flags().String("server.addr", "", "API listen address")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url (or DATABASE_URL) is required")
	}

	logging.SetDefault("storeloft", version, cfg.Logging.Format)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	catalog := extpg.NewCatalogRepository(pool)
	installations := extpg.NewInstallationRepository(pool)
	settings := extpg.NewSettingsRepository(pool)
	profiles := extpg.NewProfileRepository(pool)
	transactor := extpg.NewTransactor(pool)

	res := resolver.NewStatic()
	loyaltypoints.Register(res)

	registry := extension.NewRegistry()
	enforcer := capability.NewEnforcer()
	transport := extension.NewHTTPTransport(cfg.HostAPI.BaseURL, nil)
	sandbox := extension.NewSandbox(transport, enforcer, logger)

	hooks := extension.NewHookDispatcher(res, sandbox, logger,
		extension.WithHookPolicy(extension.HookPolicy(cfg.Hooks.Policy)),
		extension.WithHookRetry(cfg.Hooks.Attempts, cfg.Hooks.Backoff),
	)

	loader := extension.NewLoader(extension.LoaderConfig{
		Registry:      registry,
		Catalog:       catalog,
		Installations: installations,
		Settings:      settings,
		Profiles:      profiles,
		Resolver:      res,
		Sandbox:       sandbox,
		Logger:        logger,
	})
	manager := extension.NewManager(extension.ManagerConfig{
		Catalog:       catalog,
		Installations: installations,
		Settings:      settings,
		Transactor:    transactor,
		Registry:      registry,
		Sandbox:       sandbox,
		Hooks:         hooks,
		Logger:        logger,
	})

	obs := observability.NewServer(cfg.Observability.Addr,
		func() bool { return pool.Ping(context.Background()) == nil },
		extension.Collectors()...)
	obsErrCh, err := obs.Start()
	if err != nil {
		return err
	}

	api := server.New(server.Config{
		Addr:     cfg.Server.Addr,
		Manager:  manager,
		Loader:   loader,
		Catalog:  catalog,
		Profiles: profiles,
		Metrics:  obs.Metrics(),
		Logger:   logger,
	})

	apiErrCh := make(chan error, 1)
	go func() {
		if serveErr := api.Start(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrCh <- serveErr
		}
		close(apiErrCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-apiErrCh:
		if err != nil {
			return oops.With("component", "api").Wrap(err)
		}
	case err = <-obsErrCh:
		if err != nil {
			return oops.With("component", "observability").Wrap(err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", "error", err)
	}
	if err := obs.Stop(shutdownCtx); err != nil {
		logger.Error("observability shutdown failed", "error", err)
	}
	return nil
}
