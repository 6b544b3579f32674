// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/storeloft/storeloft/pkg/extsdk"
)

// In-memory repository fakes shared by the loader and manager tests.

type memCatalog struct {
	plugins map[string]*Plugin
	err     error
}

func newMemCatalog(plugins ...*Plugin) *memCatalog {
	c := &memCatalog{plugins: make(map[string]*Plugin)}
	for _, p := range plugins {
		c.plugins[p.Key] = p
	}
	return c
}

func (c *memCatalog) GetByKey(_ context.Context, key string) (*Plugin, error) {
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.plugins[key]
	if !ok {
		return nil, oops.Code(CodePluginNotFound).Wrapf(ErrNotFound, "plugin %s not found", key)
	}
	return p, nil
}

func (c *memCatalog) List(context.Context) ([]*Plugin, error) {
	out := make([]*Plugin, 0, len(c.plugins))
	for _, p := range c.plugins {
		out = append(out, p)
	}
	return out, nil
}

func (c *memCatalog) Upsert(_ context.Context, p *Plugin) error {
	c.plugins[p.Key] = p
	return nil
}

type memInstalls struct {
	items           map[ulid.ULID]*Installation
	activeByProfile map[ulid.ULID][]*Installation
	createErr       error
	setActiveErr    error
	deleted         []ulid.ULID
}

func newMemInstalls(installs ...*Installation) *memInstalls {
	m := &memInstalls{
		items:           make(map[ulid.ULID]*Installation),
		activeByProfile: make(map[ulid.ULID][]*Installation),
	}
	for _, inst := range installs {
		m.items[inst.ID] = inst
	}
	return m
}

func (m *memInstalls) Create(_ context.Context, inst *Installation) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.items {
		if existing.TenantID.Compare(inst.TenantID) == 0 && existing.PluginKey == inst.PluginKey {
			return oops.Code(CodeAlreadyInstalled).
				Wrapf(ErrConflict, "plugin %s is already installed", inst.PluginKey)
		}
	}
	inst.InstalledAt = time.Now().UTC()
	m.items[inst.ID] = inst
	return nil
}

func (m *memInstalls) GetByID(_ context.Context, id ulid.ULID) (*Installation, error) {
	inst, ok := m.items[id]
	if !ok {
		return nil, oops.Code(CodeInstallationNotFound).
			Wrapf(ErrNotFound, "installation %s not found", id)
	}
	return inst, nil
}

func (m *memInstalls) GetByTenantAndPlugin(_ context.Context, tenantID ulid.ULID, pluginKey string) (*Installation, error) {
	for _, inst := range m.items {
		if inst.TenantID.Compare(tenantID) == 0 && inst.PluginKey == pluginKey {
			return inst, nil
		}
	}
	return nil, oops.Code(CodeInstallationNotFound).
		Wrapf(ErrNotFound, "plugin %s is not installed", pluginKey)
}

func (m *memInstalls) SetActive(_ context.Context, id ulid.ULID, active bool) error {
	if m.setActiveErr != nil {
		return m.setActiveErr
	}
	inst, ok := m.items[id]
	if !ok {
		return oops.Code(CodeInstallationNotFound).Wrapf(ErrNotFound, "installation %s not found", id)
	}
	inst.Active = active
	return nil
}

func (m *memInstalls) Delete(_ context.Context, id ulid.ULID) error {
	if _, ok := m.items[id]; !ok {
		return oops.Code(CodeInstallationNotFound).Wrapf(ErrNotFound, "installation %s not found", id)
	}
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memInstalls) ListByTenant(_ context.Context, tenantID ulid.ULID) ([]*Installation, error) {
	var out []*Installation
	for _, inst := range m.items {
		if inst.TenantID.Compare(tenantID) == 0 {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (m *memInstalls) ListActiveByProfile(_ context.Context, profileID ulid.ULID) ([]*Installation, error) {
	return m.activeByProfile[profileID], nil
}

type memSettings struct {
	items  map[ulid.ULID]map[string]any
	getErr error
	putErr error
}

func newMemSettings() *memSettings {
	return &memSettings{items: make(map[ulid.ULID]map[string]any)}
}

func (m *memSettings) Get(_ context.Context, installationID ulid.ULID) (map[string]any, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	config, ok := m.items[installationID]
	if !ok {
		return map[string]any{}, nil
	}
	return config, nil
}

func (m *memSettings) Put(_ context.Context, installationID ulid.ULID, config map[string]any) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.items[installationID] = SanitizeSettings(config)
	return nil
}

func (m *memSettings) Delete(_ context.Context, installationID ulid.ULID) error {
	delete(m.items, installationID)
	return nil
}

type memProfiles struct {
	tenants map[ulid.ULID]ulid.ULID
}

func (m *memProfiles) TenantForProfile(_ context.Context, profileID ulid.ULID) (ulid.ULID, error) {
	tenant, ok := m.tenants[profileID]
	if !ok {
		return ulid.ULID{}, oops.Code(CodeProfileNotFound).
			Wrapf(ErrNotFound, "profile %s not found", profileID)
	}
	return tenant, nil
}

// passTransactor runs fn directly; commits counts completed transactions.
type passTransactor struct {
	commits  int
	beginErr error
}

func (t *passTransactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if t.beginErr != nil {
		return t.beginErr
	}
	if err := fn(ctx); err != nil {
		return err
	}
	t.commits++
	return nil
}

// mapResolver resolves from a fixed path table and records every call.
type mapResolver struct {
	artifacts map[string]extsdk.Artifact
	errs      map[string]error
	calls     []string
}

func newMapResolver() *mapResolver {
	return &mapResolver{
		artifacts: make(map[string]extsdk.Artifact),
		errs:      make(map[string]error),
	}
}

func (r *mapResolver) Resolve(_ context.Context, path string, _ *extsdk.Invocation) (extsdk.Artifact, error) {
	r.calls = append(r.calls, path)
	if err, ok := r.errs[path]; ok {
		return nil, err
	}
	artifact, ok := r.artifacts[path]
	if !ok {
		return nil, oops.Code(CodeArtifactLoadFailed).
			Wrapf(ErrLoad, "no artifact registered for %s", path)
	}
	return artifact, nil
}

// Minimal artifact implementations.

type stubWidget struct {
	html string
	err  error
}

func (w stubWidget) RenderWidget(context.Context, *extsdk.Invocation) (string, error) {
	return w.html, w.err
}

type stubPanel struct {
	html string
}

func (p stubPanel) RenderSettings(context.Context, *extsdk.Invocation) (string, error) {
	return p.html, nil
}

type stubHandler struct {
	resp *extsdk.Response
	err  error
	seen []extsdk.Request
}

func (h *stubHandler) Handle(_ context.Context, _ *extsdk.Invocation, req extsdk.Request) (*extsdk.Response, error) {
	h.seen = append(h.seen, req)
	return h.resp, h.err
}
