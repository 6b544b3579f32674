// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/storeloft/storeloft/internal/extension"
	"github.com/storeloft/storeloft/pkg/errutil"
	"github.com/storeloft/storeloft/pkg/extsdk"
)

// storefrontScope resolves the profile URL parameter to its owning tenant.
func (s *Server) storefrontScope(w http.ResponseWriter, r *http.Request) (profileID, tenant ulid.ULID, ok bool) {
	profileID, valid := pathULID(r, "profileID")
	if !valid {
		writeJSON(w, http.StatusNotFound, errorBody("PROFILE_NOT_FOUND", "profile not found"))
		return ulid.ULID{}, ulid.ULID{}, false
	}
	tenant, err := s.profiles.TenantForProfile(r.Context(), profileID)
	if err != nil {
		s.writeError(w, r, err)
		return ulid.ULID{}, ulid.ULID{}, false
	}
	return profileID, tenant, true
}

// handleActivePlugins enumerates the widgets a storefront page should
// render, without loading any of them.
func (s *Server) handleActivePlugins(w http.ResponseWriter, r *http.Request) {
	profileID, _, ok := s.storefrontScope(w, r)
	if !ok {
		return
	}

	active, err := s.loader.ActivePluginsForProfile(r.Context(), profileID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plugins": active})
}

// handleWidget renders one plugin's storefront widget. A broken plugin
// yields a failed body with status 200 so the surrounding page still
// renders.
func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	profileID, tenant, ok := s.storefrontScope(w, r)
	if !ok {
		return
	}

	res := s.loader.RenderWidget(r.Context(), extension.LoadRequest{
		PluginKey: chi.URLParam(r, "pluginKey"),
		TenantID:  tenant,
		ProfileID: profileID,
	})
	writeRender(w, res)
}

// handleInvoke executes one backend handler request.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	profileID, tenant, ok := s.storefrontScope(w, r)
	if !ok {
		return
	}

	var call extsdk.Request
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("BODY_INVALID", "invalid request body"))
		return
	}

	resp, err := s.loader.InvokeHandler(r.Context(), extension.LoadRequest{
		PluginKey: chi.URLParam(r, "pluginKey"),
		TenantID:  tenant,
		ProfileID: profileID,
	}, call)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeRender serializes a render outcome. Failures stay 200 with a
// structured error so one plugin cannot break a page; the error code is the
// isolated runtime code, never host internals.
func writeRender(w http.ResponseWriter, res extension.RenderResult) {
	if !res.Success {
		code := errutil.CodeOf(res.Err)
		if code == "" {
			code = "ARTIFACT_LOAD_FAILED"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   map[string]string{"code": code},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"cached":  res.Cached,
		"html":    res.HTML,
	})
}
