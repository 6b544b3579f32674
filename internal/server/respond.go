// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"

	"github.com/storeloft/storeloft/internal/extension"
	"github.com/storeloft/storeloft/pkg/errutil"
)

// tenantKey is the context key for the authenticated tenant ID.
type tenantKey struct{}

// requireTenant extracts and validates the tenant header. Requests without a
// parseable tenant ID never reach a handler.
func (s *Server) requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(extension.TenantHeader)
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody("TENANT_REQUIRED", "missing tenant header"))
			return
		}
		tenantID, err := ulid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody("TENANT_INVALID", "malformed tenant id"))
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey{}, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tenantID returns the tenant set by requireTenant.
func tenantID(r *http.Request) ulid.ULID {
	id, _ := r.Context().Value(tenantKey{}).(ulid.ULID)
	return id
}

// pathULID parses a ULID URL parameter.
func pathULID(r *http.Request, name string) (ulid.ULID, bool) {
	id, err := ulid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// recordRequest feeds the request counter and latency histogram when metrics
// are wired.
func (s *Server) recordRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RequestsTotal.WithLabelValues(route, http.StatusText(ww.Status())).Inc()
		s.metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may disconnect
}

func errorBody(code, message string) map[string]any {
	return map[string]any{"error": map[string]string{"code": code, "message": message}}
}

// writeError maps the runtime's error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, extension.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, extension.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, extension.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, extension.ErrCapabilityDenied):
		status = http.StatusForbidden
	}

	code := errutil.CodeOf(err)
	if code == "" {
		code = "INTERNAL"
	}
	if status == http.StatusInternalServerError {
		errutil.LogError(s.logger, "request failed", err)
		// Internal details stay out of responses.
		writeJSON(w, status, errorBody(code, "internal error"))
		return
	}

	s.logger.Debug("request rejected", "path", r.URL.Path, "code", code, "error", err)
	writeJSON(w, status, errorBody(code, err.Error()))
}
