// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/storeloft/storeloft/internal/extension"
)

// catalogEntry is the public projection of a catalog plugin.
type catalogEntry struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	Type       string `json:"type"`
	Premium    bool   `json:"premium"`
	PriceCents int    `json:"priceCents"`
}

// installationView is the JSON shape for an installation.
type installationView struct {
	ID          string    `json:"id"`
	PluginKey   string    `json:"pluginKey"`
	Active      bool      `json:"active"`
	Version     string    `json:"version"`
	InstalledAt time.Time `json:"installedAt"`
}

func viewInstallation(inst *extension.Installation) installationView {
	return installationView{
		ID:          inst.ID.String(),
		PluginKey:   inst.PluginKey,
		Active:      inst.Active,
		Version:     inst.Version,
		InstalledAt: inst.InstalledAt,
	}
}

// handleCatalog lists catalog-active plugins available to install.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	plugins, err := s.catalog.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entries := make([]catalogEntry, 0, len(plugins))
	for _, p := range plugins {
		if !p.Active {
			continue
		}
		entries = append(entries, catalogEntry{
			Key:        p.Key,
			Name:       p.Name,
			Version:    p.Version,
			Type:       string(p.Type),
			Premium:    p.Premium,
			PriceCents: p.PriceCents,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"plugins": entries})
}

// handleListInstalled lists the tenant's installations, active or not.
func (s *Server) handleListInstalled(w http.ResponseWriter, r *http.Request) {
	installed, err := s.manager.ListInstalled(r.Context(), tenantID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	type installedView struct {
		installationView
		PluginName string         `json:"pluginName"`
		Settings   map[string]any `json:"settings"`
	}
	views := make([]installedView, 0, len(installed))
	for _, ip := range installed {
		views = append(views, installedView{
			installationView: viewInstallation(&ip.Installation),
			PluginName:       ip.PluginName,
			Settings:         ip.Settings,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"installations": views})
}

// handleInstall installs a catalog plugin for the tenant.
func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	inst, err := s.manager.Install(r.Context(), tenantID(r), chi.URLParam(r, "pluginKey"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"installation": viewInstallation(inst)})
}

// handleUninstall removes an installation.
func (s *Server) handleUninstall(w http.ResponseWriter, r *http.Request) {
	id, ok := pathULID(r, "installationID")
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("INSTALLATION_NOT_FOUND", "installation not found"))
		return
	}
	if err := s.manager.Uninstall(r.Context(), tenantID(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleActivate enables an installation.
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, s.manager.Activate)
}

// handleDeactivate disables an installation.
func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, s.manager.Deactivate)
}

func (s *Server) setActive(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, tenantID, installationID ulid.ULID) error) {
	id, ok := pathULID(r, "installationID")
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("INSTALLATION_NOT_FOUND", "installation not found"))
		return
	}
	if err := op(r.Context(), tenantID(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetSettings returns an installation's current settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathULID(r, "installationID")
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("INSTALLATION_NOT_FOUND", "installation not found"))
		return
	}
	settings, err := s.manager.GetSettings(r.Context(), tenantID(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

// handleUpdateSettings validates and persists a settings payload.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathULID(r, "installationID")
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("INSTALLATION_NOT_FOUND", "installation not found"))
		return
	}

	var body struct {
		Settings map[string]any `json:"settings"`
		IsActive *bool          `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("BODY_INVALID", "invalid request body"))
		return
	}

	stored, err := s.manager.UpdateSettings(r.Context(), tenantID(r), id, body.Settings, body.IsActive)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": stored})
}

// handleSettingsPanel renders a plugin's dashboard settings panel. The panel
// is loadable while the installation is inactive; load failures come back as
// a structured body, not an error status.
func (s *Server) handleSettingsPanel(w http.ResponseWriter, r *http.Request) {
	res := s.loader.RenderSettingsPanel(r.Context(), extension.LoadRequest{
		PluginKey: chi.URLParam(r, "pluginKey"),
		TenantID:  tenantID(r),
	})
	writeRender(w, res)
}
