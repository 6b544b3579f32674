// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ManagerConfig holds dependencies for the Manager.
type ManagerConfig struct {
	Catalog       CatalogRepository
	Installations InstallationRepository
	Settings      SettingsRepository
	Transactor    Transactor
	Registry      *Registry
	Sandbox       *Sandbox
	Hooks         *HookDispatcher
	Logger        *slog.Logger
}

// Manager owns the installation lifecycle: install, uninstall, activate,
// deactivate, settings updates, and the tenant dashboard listing. State
// transitions commit first; lifecycle hooks run after commit through the
// dispatcher and never roll a transition back.
type Manager struct {
	catalog       CatalogRepository
	installations InstallationRepository
	settings      SettingsRepository
	tx            Transactor
	registry      *Registry
	sandbox       *Sandbox
	hooks         *HookDispatcher
	logger        *slog.Logger
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		catalog:       cfg.Catalog,
		installations: cfg.Installations,
		settings:      cfg.Settings,
		tx:            cfg.Transactor,
		registry:      cfg.Registry,
		sandbox:       cfg.Sandbox,
		hooks:         cfg.Hooks,
		logger:        logger,
	}
}

// Install creates an installation of a catalog-active plugin for a tenant.
// The catalog manifest must pass validation before anything is written; a
// corrupt catalog row must not become an installation. The manifest is then
// registered in the Registry, and the installation row and its empty
// settings commit atomically; onInit and onInstall hooks run after commit.
// A second install of the same plugin for the same tenant fails with a
// conflict, decided by the database unique index so concurrent installs
// cannot both win.
func (m *Manager) Install(ctx context.Context, tenantID ulid.ULID, pluginKey string) (*Installation, error) {
	plugin, err := m.catalog.GetByKey(ctx, pluginKey)
	if err != nil {
		recordLifecycle("install", "error")
		return nil, err
	}
	if !plugin.Active {
		recordLifecycle("install", "error")
		return nil, oops.Code(CodePluginNotFound).
			With("plugin", pluginKey).
			Wrapf(ErrNotFound, "plugin %s not found", pluginKey)
	}

	if plugin.Manifest == nil {
		recordLifecycle("install", "error")
		return nil, oops.Code(CodeManifestInvalid).
			With("plugin", pluginKey).
			Wrapf(ErrValidation, "plugin %s has no manifest", pluginKey)
	}
	if errs := plugin.Manifest.Validate(); len(errs) > 0 {
		recordLifecycle("install", "error")
		return nil, oops.Code(CodeManifestInvalid).
			With("plugin", pluginKey).
			With("violations", errs).
			Wrapf(ErrValidation, "manifest rejected: %v", errs)
	}
	m.registry.RegisterManifest(pluginKey, plugin.Manifest)

	inst := &Installation{
		ID:        ulid.Make(),
		TenantID:  tenantID,
		PluginKey: pluginKey,
		Active:    true,
		Version:   plugin.Version,
	}
	seed := SanitizeSettings(nil)

	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := m.installations.Create(ctx, inst); err != nil {
			return err
		}
		return m.settings.Put(ctx, inst.ID, seed)
	})
	if err != nil {
		recordLifecycle("install", "error")
		if errors.Is(err, ErrConflict) {
			return nil, oops.Code(CodeAlreadyInstalled).
				With("plugin", pluginKey).
				With("tenant", tenantID.String()).
				Wrapf(ErrConflict, "plugin %s is already installed", pluginKey)
		}
		return nil, oops.Code(CodeInstallFailed).With("plugin", pluginKey).Wrap(err)
	}
	recordLifecycle("install", "success")

	if err := m.sandbox.RegisterPermissions(plugin.Manifest); err != nil {
		m.logger.Warn("permission registration failed after install",
			"plugin", pluginKey, "error", err)
	}

	hookCtx := m.hookContext(inst, seed)
	if err := m.hooks.Dispatch(ctx,
		HookEvent{Name: HookOnInit, Manifest: plugin.Manifest, Context: hookCtx},
		HookEvent{Name: HookOnInstall, Manifest: plugin.Manifest, Context: hookCtx},
	); err != nil {
		return inst, err
	}
	return inst, nil
}

// Uninstall removes an installation and its settings. The onUninstall hook
// runs before deletion so the plugin still has a valid context to clean up
// with; its failure follows the dispatcher policy. The registry entry and
// the plugin's capability grants are evicted afterwards.
func (m *Manager) Uninstall(ctx context.Context, tenantID, installationID ulid.ULID) error {
	inst, err := m.tenantInstallation(ctx, tenantID, installationID)
	if err != nil {
		recordLifecycle("uninstall", "error")
		return err
	}

	plugin, err := m.catalog.GetByKey(ctx, inst.PluginKey)
	if err == nil {
		settings, sErr := m.settings.Get(ctx, inst.ID)
		if sErr != nil {
			settings = map[string]any{}
		}
		if hErr := m.hooks.Dispatch(ctx, HookEvent{
			Name:     HookOnUninstall,
			Manifest: plugin.Manifest,
			Context:  m.hookContext(inst, settings),
		}); hErr != nil {
			recordLifecycle("uninstall", "error")
			return hErr
		}
	}

	err = m.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := m.settings.Delete(ctx, inst.ID); err != nil {
			return err
		}
		return m.installations.Delete(ctx, inst.ID)
	})
	if err != nil {
		recordLifecycle("uninstall", "error")
		return oops.Code(CodeUninstallFailed).With("plugin", inst.PluginKey).Wrap(err)
	}

	m.registry.ClearPlugin(inst.PluginKey)
	m.sandbox.RemovePermissions(inst.PluginKey)
	recordLifecycle("uninstall", "success")
	return nil
}

// Activate enables an installation. Activating an already-active
// installation is a no-op and does not re-run hooks; otherwise the flag
// flips first and onActivate runs after.
func (m *Manager) Activate(ctx context.Context, tenantID, installationID ulid.ULID) error {
	inst, err := m.tenantInstallation(ctx, tenantID, installationID)
	if err != nil {
		recordLifecycle("activate", "error")
		return err
	}
	if inst.Active {
		recordLifecycle("activate", "noop")
		return nil
	}

	if err := m.installations.SetActive(ctx, inst.ID, true); err != nil {
		recordLifecycle("activate", "error")
		return oops.Code(CodeActivationFailed).With("plugin", inst.PluginKey).Wrap(err)
	}
	recordLifecycle("activate", "success")

	return m.dispatchStateHook(ctx, inst, HookOnActivate)
}

// Deactivate disables an installation. The onDeactivate hook runs before
// the flag flips so the plugin observes its final active moment; under
// best-effort policy a hook failure still lets deactivation proceed.
// Deactivating an inactive installation is a no-op.
func (m *Manager) Deactivate(ctx context.Context, tenantID, installationID ulid.ULID) error {
	inst, err := m.tenantInstallation(ctx, tenantID, installationID)
	if err != nil {
		recordLifecycle("deactivate", "error")
		return err
	}
	if !inst.Active {
		recordLifecycle("deactivate", "noop")
		return nil
	}

	if err := m.dispatchStateHook(ctx, inst, HookOnDeactivate); err != nil {
		recordLifecycle("deactivate", "error")
		return err
	}

	if err := m.installations.SetActive(ctx, inst.ID, false); err != nil {
		recordLifecycle("deactivate", "error")
		return oops.Code(CodeDeactivationFailed).With("plugin", inst.PluginKey).Wrap(err)
	}
	recordLifecycle("deactivate", "success")
	return nil
}

// ListInstalled returns every installation for the tenant, active or not,
// joined with its settings and catalog display name.
func (m *Manager) ListInstalled(ctx context.Context, tenantID ulid.ULID) ([]InstalledPlugin, error) {
	installs, err := m.installations.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, oops.Code(CodeListInstallationsFailed).
			With("tenant", tenantID.String()).
			Wrap(err)
	}

	out := make([]InstalledPlugin, 0, len(installs))
	for _, inst := range installs {
		settings, err := m.settings.Get(ctx, inst.ID)
		if err != nil {
			return nil, oops.Code(CodeListInstallationsFailed).
				With("installation", inst.ID.String()).
				Wrap(err)
		}

		name := inst.PluginKey
		if plugin, err := m.catalog.GetByKey(ctx, inst.PluginKey); err == nil {
			name = plugin.Name
		}

		out = append(out, InstalledPlugin{
			Installation: *inst,
			PluginName:   name,
			Settings:     settings,
		})
	}
	return out, nil
}

// GetSettings returns an installation's settings after verifying tenant
// ownership.
func (m *Manager) GetSettings(ctx context.Context, tenantID, installationID ulid.ULID) (map[string]any, error) {
	inst, err := m.tenantInstallation(ctx, tenantID, installationID)
	if err != nil {
		return nil, err
	}
	return m.settings.Get(ctx, inst.ID)
}

// UpdateSettings validates a settings payload against the plugin's config
// schema and persists it. Validation failures list every violated
// constraint; nothing is persisted on failure. A non-nil isActive also
// toggles the installation through Activate/Deactivate after the settings
// land, so the usual hook and no-op semantics apply. Returns the stored
// settings.
func (m *Manager) UpdateSettings(ctx context.Context, tenantID, installationID ulid.ULID, config map[string]any, isActive *bool) (map[string]any, error) {
	inst, err := m.tenantInstallation(ctx, tenantID, installationID)
	if err != nil {
		return nil, err
	}

	plugin, err := m.catalog.GetByKey(ctx, inst.PluginKey)
	if err != nil {
		return nil, err
	}

	config = SanitizeSettings(config)
	if plugin.Manifest != nil {
		result := ValidateConfig(config, plugin.Manifest.ConfigSchema)
		if !result.Valid {
			return nil, oops.Code(CodeSettingsInvalid).
				With("plugin", inst.PluginKey).
				With("violations", result.Errors).
				Wrapf(ErrValidation, "settings rejected: %v", result.Errors)
		}
	}

	if err := m.settings.Put(ctx, inst.ID, config); err != nil {
		return nil, oops.Code(CodeSettingsPersistFailed).
			With("installation", inst.ID.String()).
			Wrap(err)
	}

	if isActive != nil {
		if *isActive {
			err = m.Activate(ctx, tenantID, installationID)
		} else {
			err = m.Deactivate(ctx, tenantID, installationID)
		}
		if err != nil {
			return nil, err
		}
	}
	return config, nil
}

// tenantInstallation fetches an installation and verifies ownership. A
// mismatched tenant gets the same not-found as a missing row.
func (m *Manager) tenantInstallation(ctx context.Context, tenantID, installationID ulid.ULID) (*Installation, error) {
	inst, err := m.installations.GetByID(ctx, installationID)
	if err != nil {
		return nil, err
	}
	if inst.TenantID.Compare(tenantID) != 0 {
		return nil, oops.Code(CodeInstallationNotFound).
			With("installation", installationID.String()).
			Wrapf(ErrNotFound, "installation %s not found", installationID)
	}
	return inst, nil
}

// dispatchStateHook runs one activation-state hook with the installation's
// current settings. Missing catalog data skips the hook rather than failing
// the state change.
func (m *Manager) dispatchStateHook(ctx context.Context, inst *Installation, name HookName) error {
	plugin, err := m.catalog.GetByKey(ctx, inst.PluginKey)
	if err != nil {
		m.logger.Warn("catalog lookup failed for lifecycle hook",
			"plugin", inst.PluginKey, "hook", string(name), "error", err)
		return nil
	}

	settings, err := m.settings.Get(ctx, inst.ID)
	if err != nil {
		settings = map[string]any{}
	}

	return m.hooks.Dispatch(ctx, HookEvent{
		Name:     name,
		Manifest: plugin.Manifest,
		Context:  m.hookContext(inst, settings),
	})
}

// hookContext builds the invocation context hooks run with.
func (m *Manager) hookContext(inst *Installation, settings map[string]any) *Context {
	c := &Context{
		TenantID:       inst.TenantID,
		InstallationID: inst.ID,
		PluginKey:      inst.PluginKey,
		Settings:       settings,
	}
	c.API = m.sandbox.NewScopedClient(c)
	return c
}
