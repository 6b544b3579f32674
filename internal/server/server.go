// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

// Package server exposes the extension runtime over HTTP: tenant-facing
// lifecycle endpoints and public storefront endpoints.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/storeloft/storeloft/internal/extension"
	"github.com/storeloft/storeloft/internal/observability"
)

// Server is the public HTTP API.
type Server struct {
	addr     string
	router   chi.Router
	manager  *extension.Manager
	loader   *extension.Loader
	catalog  extension.CatalogRepository
	profiles extension.ProfileRepository
	metrics  *observability.Metrics
	logger   *slog.Logger
	http     *http.Server
}

// Config holds dependencies for the Server.
type Config struct {
	Addr     string
	Manager  *extension.Manager
	Loader   *extension.Loader
	Catalog  extension.CatalogRepository
	Profiles extension.ProfileRepository
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// New creates a Server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:     cfg.Addr,
		manager:  cfg.Manager,
		loader:   cfg.Loader,
		catalog:  cfg.Catalog,
		profiles: cfg.Profiles,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router returns the underlying router, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.recordRequest)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Global catalog, no tenant required.
		r.Get("/plugins", s.handleCatalog)

		// Tenant dashboard surface.
		r.Route("/shop", func(r chi.Router) {
			r.Use(s.requireTenant)
			r.Get("/plugins", s.handleListInstalled)
			r.Post("/plugins/{pluginKey}/install", s.handleInstall)
			r.Get("/plugins/{pluginKey}/settings-panel", s.handleSettingsPanel)
			r.Delete("/installations/{installationID}", s.handleUninstall)
			r.Post("/installations/{installationID}/activate", s.handleActivate)
			r.Post("/installations/{installationID}/deactivate", s.handleDeactivate)
			r.Get("/installations/{installationID}/settings", s.handleGetSettings)
			r.Put("/installations/{installationID}/settings", s.handleUpdateSettings)
		})

		// Public storefront surface, keyed by profile.
		r.Route("/storefront/{profileID}", func(r chi.Router) {
			r.Get("/plugins", s.handleActivePlugins)
			r.Get("/plugins/{pluginKey}/widget", s.handleWidget)
			r.Post("/plugins/{pluginKey}/invoke", s.handleInvoke)
		})
	})

	return r
}

// Start begins serving the public API. Blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting api server", "addr", s.addr)
	return s.http.ListenAndServe() //nolint:wrapcheck // caller handles ErrServerClosed
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down api server")
	return s.http.Shutdown(ctx) //nolint:wrapcheck // shutdown error passthrough
}
