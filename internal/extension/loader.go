// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/storeloft/storeloft/pkg/extsdk"
)

// EntryPoint identifies one of the three ways a plugin can be invoked.
type EntryPoint string

// Extension points served by the loader.
const (
	EntryPublicWidget      EntryPoint = "public_widget"
	EntryDashboardSettings EntryPoint = "dashboard_settings"
	EntryBackendHandler    EntryPoint = "backend_handler"
)

// Resolver obtains a callable artifact for an entry-point path. The concrete
// mechanism (compiled-in registry, directory scan, remote fetch) is
// swappable; resolution receives exactly the invocation built by the loader
// and nothing more.
type Resolver interface {
	Resolve(ctx context.Context, path string, inv *extsdk.Invocation) (extsdk.Artifact, error)
}

// LoadRequest identifies the installation whose artifact is being loaded.
// InstallationID is optional; when set it must match the installation found
// for (tenant, plugin) or the load reports not-found.
type LoadRequest struct {
	PluginKey      string
	TenantID       ulid.ULID
	ProfileID      ulid.ULID
	InstallationID ulid.ULID
}

// LoadResult is the structured outcome of a widget or dashboard load. A
// failed load carries Err and a false Success flag; it is never raised as an
// error past the loader so one broken plugin cannot break a tenant's page.
type LoadResult struct {
	Success  bool
	Cached   bool
	Artifact extsdk.Artifact
	Context  *Context
	Err      error
}

// LoaderConfig holds dependencies for the Loader.
type LoaderConfig struct {
	Registry      *Registry
	Catalog       CatalogRepository
	Installations InstallationRepository
	Settings      SettingsRepository
	Profiles      ProfileRepository
	Resolver      Resolver
	Sandbox       *Sandbox
	Logger        *slog.Logger
}

// Loader resolves the three extension points for an installation,
// consulting the registry cache, building the invocation context, and
// executing resolution inside the sandbox.
type Loader struct {
	registry      *Registry
	catalog       CatalogRepository
	installations InstallationRepository
	settings      SettingsRepository
	profiles      ProfileRepository
	resolver      Resolver
	sandbox       *Sandbox
	logger        *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(cfg LoaderConfig) *Loader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		registry:      cfg.Registry,
		catalog:       cfg.Catalog,
		installations: cfg.Installations,
		settings:      cfg.Settings,
		profiles:      cfg.Profiles,
		resolver:      cfg.Resolver,
		sandbox:       cfg.Sandbox,
		logger:        logger,
	}
}

// LoadPublicWidget loads a plugin's storefront widget. Failures are returned
// as a structured result, never as an error.
func (l *Loader) LoadPublicWidget(ctx context.Context, req LoadRequest) LoadResult {
	return l.load(ctx, req, EntryPublicWidget)
}

// LoadDashboardSettings loads a plugin's dashboard settings panel. Like
// widget loads, failures are structured results; the panel stays loadable
// while the installation is inactive so a tenant can configure a plugin
// before enabling it.
func (l *Loader) LoadDashboardSettings(ctx context.Context, req LoadRequest) LoadResult {
	return l.load(ctx, req, EntryDashboardSettings)
}

// LoadBackendHandler loads a plugin's backend handler. Unlike the render
// paths, failures are returned as errors (isolated through the sandbox)
// because handler invocation has a caller able to handle them.
func (l *Loader) LoadBackendHandler(ctx context.Context, req LoadRequest) (extsdk.Handler, *Context, error) {
	res := l.load(ctx, req, EntryBackendHandler)
	if !res.Success {
		return nil, nil, l.sandbox.IsolateError(res.Err, req.PluginKey)
	}
	handler, ok := res.Artifact.(extsdk.Handler)
	if !ok {
		err := oops.Code(CodeArtifactLoadFailed).
			With("plugin", req.PluginKey).
			Wrapf(ErrLoad, "artifact for %s is not a backend handler", req.PluginKey)
		return nil, nil, l.sandbox.IsolateError(err, req.PluginKey)
	}
	return handler, res.Context, nil
}

// load is the single algorithm behind all three entry points.
func (l *Loader) load(ctx context.Context, req LoadRequest, ep EntryPoint) LoadResult {
	start := time.Now()
	cacheKey := req.PluginKey
	if ep == EntryDashboardSettings {
		cacheKey = SettingsKey(req.PluginKey)
	}

	fail := func(err error) LoadResult {
		l.registry.MarkError(cacheKey, err)
		recordLoad(ep, "error", time.Since(start))
		l.logger.Warn("extension load failed",
			"plugin", req.PluginKey,
			"entry_point", string(ep),
			"tenant", req.TenantID.String(),
			"error", err)
		return LoadResult{Err: err}
	}

	// Cache probe first. The registry is tenant-agnostic, so the
	// tenant-scoped checks below still run on a hit; only catalog fetch
	// and resolution are skipped.
	cached := l.registry.Cached(cacheKey)
	var manifest *Manifest
	if cached != nil {
		manifest = l.registry.Manifest(cacheKey)
	}

	if manifest == nil {
		plugin, err := l.catalog.GetByKey(ctx, req.PluginKey)
		if err != nil {
			return fail(err)
		}
		if !plugin.Active {
			return fail(oops.Code(CodePluginNotFound).
				With("plugin", req.PluginKey).
				Wrapf(ErrNotFound, "plugin %s not found", req.PluginKey))
		}
		manifest = plugin.Manifest
		cached = nil
	}

	path := manifest.EntryPath(ep)
	if path == "" {
		return fail(oops.Code(CodeEntryPointUnsupported).
			With("plugin", req.PluginKey).
			With("entry_point", string(ep)).
			Wrapf(ErrLoad, "plugin %s does not support %s", req.PluginKey, ep))
	}

	inst, err := l.installations.GetByTenantAndPlugin(ctx, req.TenantID, req.PluginKey)
	if err != nil {
		return fail(err)
	}
	if req.InstallationID.Compare(ulid.ULID{}) != 0 && req.InstallationID.Compare(inst.ID) != 0 {
		return fail(oops.Code(CodeInstallationNotFound).
			With("plugin", req.PluginKey).
			Wrapf(ErrNotFound, "installation not found"))
	}
	if ep != EntryDashboardSettings && !inst.Active {
		return fail(oops.Code(CodeInstallationNotFound).
			With("plugin", req.PluginKey).
			Wrapf(ErrNotFound, "plugin %s is not active for this tenant", req.PluginKey))
	}

	settings, err := l.settings.Get(ctx, inst.ID)
	if err != nil {
		return fail(err)
	}

	invCtx := &Context{
		TenantID:       req.TenantID,
		ProfileID:      req.ProfileID,
		InstallationID: inst.ID,
		PluginKey:      req.PluginKey,
		Settings:       settings,
	}
	invCtx.API = l.sandbox.NewScopedClient(invCtx)

	if cached != nil {
		recordCacheHit()
		recordLoad(ep, "cached", time.Since(start))
		return LoadResult{Success: true, Cached: true, Artifact: cached, Context: invCtx}
	}

	if err := l.sandbox.RegisterPermissions(manifest); err != nil {
		return fail(err)
	}

	artifact, err := ExecuteInSandbox(ctx, l.sandbox, invCtx, func(ctx context.Context) (extsdk.Artifact, error) {
		return l.resolver.Resolve(ctx, path, invCtx.Invocation())
	})
	if err != nil {
		return fail(err)
	}
	if err := checkArtifactKind(artifact, ep, req.PluginKey); err != nil {
		return fail(err)
	}

	l.registry.RegisterManifest(cacheKey, manifest)
	l.registry.CacheArtifact(cacheKey, artifact)
	recordLoad(ep, "success", time.Since(start))

	return LoadResult{Success: true, Artifact: artifact, Context: invCtx}
}

// checkArtifactKind verifies the resolved artifact implements the contract
// for the requested entry point.
func checkArtifactKind(artifact extsdk.Artifact, ep EntryPoint, pluginKey string) error {
	var ok bool
	switch ep {
	case EntryPublicWidget:
		_, ok = artifact.(extsdk.Widget)
	case EntryDashboardSettings:
		_, ok = artifact.(extsdk.SettingsPanel)
	case EntryBackendHandler:
		_, ok = artifact.(extsdk.Handler)
	}
	if !ok {
		return oops.Code(CodeArtifactLoadFailed).
			With("plugin", pluginKey).
			With("entry_point", string(ep)).
			Wrapf(ErrLoad, "artifact for %s does not implement %s", pluginKey, ep)
	}
	return nil
}

// PluginConfig returns the persisted settings for an installation, defaulting
// to an empty object when nothing has been stored yet.
func (l *Loader) PluginConfig(ctx context.Context, installationID ulid.ULID) (map[string]any, error) {
	if _, err := l.installations.GetByID(ctx, installationID); err != nil {
		return nil, err
	}
	return l.settings.Get(ctx, installationID)
}

// ActivePluginsForProfile returns, for every installation on the profile's
// tenant that is both installation-active and catalog-active, the minimal
// tuple a renderer needs to enumerate widgets without loading them.
func (l *Loader) ActivePluginsForProfile(ctx context.Context, profileID ulid.ULID) ([]ActivePlugin, error) {
	installs, err := l.installations.ListActiveByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	active := make([]ActivePlugin, 0, len(installs))
	for _, inst := range installs {
		config, err := l.settings.Get(ctx, inst.ID)
		if err != nil {
			return nil, err
		}
		active = append(active, ActivePlugin{
			PluginKey:      inst.PluginKey,
			InstallationID: inst.ID,
			Config:         config,
		})
	}
	return active, nil
}
