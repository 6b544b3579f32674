// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeloft/storeloft/internal/extension/capability"
	"github.com/storeloft/storeloft/pkg/errutil"
	"github.com/storeloft/storeloft/pkg/extsdk"
)

type managerEnv struct {
	catalog  *memCatalog
	installs *memInstalls
	settings *memSettings
	tx       *passTransactor
	registry *Registry
	enforcer *capability.Enforcer
	resolver *mapResolver
	manager  *Manager

	tenantID ulid.ULID
	hookLog  *[]string
}

func managedManifest() *Manifest {
	return &Manifest{
		Key:              "loyalty-points",
		Name:             "Loyalty Points",
		Version:          "1.2.0",
		Type:             TypeMixed,
		PublicWidgetPath: "loyalty/widget",
		ConfigSchema: &ConfigSchema{
			Properties: map[string]PropertySchema{
				"points_per_purchase": {Type: "number", Minimum: floatPtr(1), Maximum: floatPtr(1000)},
			},
			Required: []string{"points_per_purchase"},
		},
		Hooks: &LifecycleHooks{
			OnInit:       "loyalty/hooks/init",
			OnInstall:    "loyalty/hooks/install",
			OnUninstall:  "loyalty/hooks/uninstall",
			OnActivate:   "loyalty/hooks/activate",
			OnDeactivate: "loyalty/hooks/deactivate",
		},
		Permissions: []string{"/api/v1/orders/*"},
	}
}

// newManagerEnv wires a manager over in-memory fakes. Every declared hook
// resolves to a recorder that appends its name to hookLog.
func newManagerEnv(t *testing.T, opts ...DispatcherOption) *managerEnv {
	t.Helper()

	env := &managerEnv{
		catalog:  newMemCatalog(),
		installs: newMemInstalls(),
		settings: newMemSettings(),
		tx:       &passTransactor{},
		registry: NewRegistry(),
		enforcer: capability.NewEnforcer(),
		resolver: newMapResolver(),
		tenantID: ulid.Make(),
		hookLog:  new([]string),
	}

	manifest := managedManifest()
	env.catalog.plugins[manifest.Key] = &Plugin{
		Key:      manifest.Key,
		Name:     manifest.Name,
		Version:  manifest.Version,
		Type:     manifest.Type,
		Manifest: manifest,
		Active:   true,
	}

	for name, path := range map[string]string{
		"onInit":       "loyalty/hooks/init",
		"onInstall":    "loyalty/hooks/install",
		"onUninstall":  "loyalty/hooks/uninstall",
		"onActivate":   "loyalty/hooks/activate",
		"onDeactivate": "loyalty/hooks/deactivate",
	} {
		hookName := name
		env.resolver.artifacts[path] = extsdk.Hook(func(context.Context, *extsdk.Invocation) error {
			*env.hookLog = append(*env.hookLog, hookName)
			return nil
		})
	}

	sandbox := NewSandbox(&fakeTransport{}, env.enforcer, nil)
	opts = append([]DispatcherOption{WithHookRetry(3, time.Millisecond)}, opts...)
	env.manager = NewManager(ManagerConfig{
		Catalog:       env.catalog,
		Installations: env.installs,
		Settings:      env.settings,
		Transactor:    env.tx,
		Registry:      env.registry,
		Sandbox:       sandbox,
		Hooks:         NewHookDispatcher(env.resolver, sandbox, nil, opts...),
	})
	return env
}

func TestManager_Install(t *testing.T) {
	env := newManagerEnv(t)
	ctx := context.Background()

	inst, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, env.tenantID, inst.TenantID)
	assert.Equal(t, "loyalty-points", inst.PluginKey)
	assert.True(t, inst.Active, "installations start active")
	assert.Equal(t, "1.2.0", inst.Version, "version pinned at install time")

	assert.Equal(t, 1, env.tx.commits, "row and settings commit atomically")
	stored, err := env.settings.Get(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, stored, "settings seeded empty")

	assert.Equal(t, []string{"onInit", "onInstall"}, *env.hookLog, "hooks run post-commit, in order")
	assert.True(t, env.enforcer.IsRegistered("loyalty-points"))
	require.NotNil(t, env.registry.Manifest("loyalty-points"), "manifest registered on install")
	assert.Equal(t, "1.2.0", env.registry.Manifest("loyalty-points").Version)
}

func TestManager_InstallErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown plugin", func(t *testing.T) {
		env := newManagerEnv(t)
		_, err := env.manager.Install(ctx, env.tenantID, "ghost")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
		errutil.AssertErrorCode(t, err, CodePluginNotFound)
	})

	t.Run("catalog-inactive plugin", func(t *testing.T) {
		env := newManagerEnv(t)
		env.catalog.plugins["loyalty-points"].Active = false
		_, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, CodePluginNotFound)
	})

	t.Run("duplicate install conflicts", func(t *testing.T) {
		env := newManagerEnv(t)
		_, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
		require.NoError(t, err)

		_, err = env.manager.Install(ctx, env.tenantID, "loyalty-points")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConflict)
		errutil.AssertErrorCode(t, err, CodeAlreadyInstalled)
		assert.Equal(t, []string{"onInit", "onInstall"}, *env.hookLog, "no hooks for the failed install")
	})

	t.Run("same plugin for another tenant succeeds", func(t *testing.T) {
		env := newManagerEnv(t)
		_, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
		require.NoError(t, err)
		_, err = env.manager.Install(ctx, ulid.Make(), "loyalty-points")
		require.NoError(t, err)
	})

	t.Run("missing manifest rejected", func(t *testing.T) {
		env := newManagerEnv(t)
		env.catalog.plugins["loyalty-points"].Manifest = nil

		_, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
		require.Error(t, err)
		errutil.AssertTaxonomy(t, err, ErrValidation, CodeManifestInvalid)
		assert.Empty(t, env.installs.items, "nothing written for a corrupt catalog row")
		assert.Empty(t, *env.hookLog)
	})

	t.Run("invalid manifest rejected", func(t *testing.T) {
		env := newManagerEnv(t)
		env.catalog.plugins["loyalty-points"].Manifest = &Manifest{}

		_, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
		require.Error(t, err)
		errutil.AssertTaxonomy(t, err, ErrValidation, CodeManifestInvalid)
		assert.Empty(t, env.installs.items)
		assert.Nil(t, env.registry.Manifest("loyalty-points"), "rejected manifest never registered")
	})
}

func TestManager_Uninstall(t *testing.T) {
	env := newManagerEnv(t)
	ctx := context.Background()

	inst, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
	require.NoError(t, err)
	env.registry.CacheArtifact("loyalty-points", "artifact")
	*env.hookLog = nil

	require.NoError(t, env.manager.Uninstall(ctx, env.tenantID, inst.ID))

	assert.Equal(t, []string{"onUninstall"}, *env.hookLog)
	assert.Equal(t, []ulid.ULID{inst.ID}, env.installs.deleted)
	_, hasSettings := env.settings.items[inst.ID]
	assert.False(t, hasSettings, "settings removed with the installation")
	assert.False(t, env.registry.IsCached("loyalty-points"), "cache evicted")
	assert.False(t, env.enforcer.IsRegistered("loyalty-points"), "grants revoked")
}

func TestManager_UninstallTenantMismatch(t *testing.T) {
	env := newManagerEnv(t)
	ctx := context.Background()

	inst, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
	require.NoError(t, err)

	err = env.manager.Uninstall(ctx, ulid.Make(), inst.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound, "foreign tenant sees not-found, not forbidden")
	errutil.AssertErrorCode(t, err, CodeInstallationNotFound)
	assert.Contains(t, env.installs.items, inst.ID, "installation untouched")
}

func TestManager_ActivateDeactivate(t *testing.T) {
	env := newManagerEnv(t)
	ctx := context.Background()

	inst, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
	require.NoError(t, err)
	*env.hookLog = nil

	t.Run("activate while active is a no-op", func(t *testing.T) {
		require.NoError(t, env.manager.Activate(ctx, env.tenantID, inst.ID))
		assert.Empty(t, *env.hookLog, "no hook re-run on no-op")
	})

	t.Run("deactivate flips after hook", func(t *testing.T) {
		require.NoError(t, env.manager.Deactivate(ctx, env.tenantID, inst.ID))
		assert.False(t, env.installs.items[inst.ID].Active)
		assert.Equal(t, []string{"onDeactivate"}, *env.hookLog)
	})

	t.Run("deactivate while inactive is a no-op", func(t *testing.T) {
		*env.hookLog = nil
		require.NoError(t, env.manager.Deactivate(ctx, env.tenantID, inst.ID))
		assert.Empty(t, *env.hookLog)
	})

	t.Run("activate flips then runs hook", func(t *testing.T) {
		*env.hookLog = nil
		require.NoError(t, env.manager.Activate(ctx, env.tenantID, inst.ID))
		assert.True(t, env.installs.items[inst.ID].Active)
		assert.Equal(t, []string{"onActivate"}, *env.hookLog)
	})
}

func TestManager_DeactivateStrictHookFailureAborts(t *testing.T) {
	env := newManagerEnv(t, WithHookPolicy(HookPolicyStrict))
	ctx := context.Background()

	inst, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
	require.NoError(t, err)
	env.resolver.errs["loyalty/hooks/deactivate"] = oops.Errorf("hook unavailable")

	err = env.manager.Deactivate(ctx, env.tenantID, inst.ID)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, CodeHookFailed)
	assert.True(t, env.installs.items[inst.ID].Active, "state unchanged when the pre-flip hook fails")
}

func TestManager_DeactivateBestEffortHookFailureProceeds(t *testing.T) {
	env := newManagerEnv(t)
	ctx := context.Background()

	inst, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
	require.NoError(t, err)
	env.resolver.errs["loyalty/hooks/deactivate"] = oops.Errorf("hook unavailable")

	require.NoError(t, env.manager.Deactivate(ctx, env.tenantID, inst.ID))
	assert.False(t, env.installs.items[inst.ID].Active)
}

func TestManager_ListInstalled(t *testing.T) {
	env := newManagerEnv(t)
	ctx := context.Background()

	inst, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
	require.NoError(t, err)
	require.NoError(t, env.manager.Deactivate(ctx, env.tenantID, inst.ID))

	list, err := env.manager.ListInstalled(ctx, env.tenantID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Loyalty Points", list[0].PluginName)
	assert.False(t, list[0].Installation.Active, "inactive installations still listed")
	assert.Equal(t, map[string]any{}, list[0].Settings)

	other, err := env.manager.ListInstalled(ctx, ulid.Make())
	require.NoError(t, err)
	assert.Empty(t, other, "tenants never see each other's installations")
}

func TestManager_ListInstalledNameFallsBackToKey(t *testing.T) {
	env := newManagerEnv(t)
	ctx := context.Background()

	_, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
	require.NoError(t, err)
	delete(env.catalog.plugins, "loyalty-points")

	list, err := env.manager.ListInstalled(ctx, env.tenantID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "loyalty-points", list[0].PluginName)
}

func TestManager_UpdateSettings(t *testing.T) {
	env := newManagerEnv(t)
	ctx := context.Background()

	inst, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
	require.NoError(t, err)

	stored, err := env.manager.UpdateSettings(ctx, env.tenantID, inst.ID,
		map[string]any{"points_per_purchase": float64(25)}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"points_per_purchase": float64(25)}, stored)

	got, err := env.manager.GetSettings(ctx, env.tenantID, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, stored, got)
}

func TestManager_UpdateSettingsTogglesActive(t *testing.T) {
	env := newManagerEnv(t)
	ctx := context.Background()

	inst, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
	require.NoError(t, err)
	*env.hookLog = nil

	deactivate := false
	_, err = env.manager.UpdateSettings(ctx, env.tenantID, inst.ID,
		map[string]any{"points_per_purchase": float64(25)}, &deactivate)
	require.NoError(t, err)
	assert.False(t, env.installs.items[inst.ID].Active)
	assert.Equal(t, []string{"onDeactivate"}, *env.hookLog, "toggle runs the usual hooks")

	t.Run("matching flag is a no-op", func(t *testing.T) {
		*env.hookLog = nil
		_, err := env.manager.UpdateSettings(ctx, env.tenantID, inst.ID,
			map[string]any{"points_per_purchase": float64(30)}, &deactivate)
		require.NoError(t, err)
		assert.Empty(t, *env.hookLog, "no hook re-run when already inactive")
	})

	t.Run("nil flag leaves state alone", func(t *testing.T) {
		_, err := env.manager.UpdateSettings(ctx, env.tenantID, inst.ID,
			map[string]any{"points_per_purchase": float64(35)}, nil)
		require.NoError(t, err)
		assert.False(t, env.installs.items[inst.ID].Active)
	})

	t.Run("reactivates through the same transitions", func(t *testing.T) {
		*env.hookLog = nil
		activate := true
		stored, err := env.manager.UpdateSettings(ctx, env.tenantID, inst.ID,
			map[string]any{"points_per_purchase": float64(40)}, &activate)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"points_per_purchase": float64(40)}, stored)
		assert.True(t, env.installs.items[inst.ID].Active)
		assert.Equal(t, []string{"onActivate"}, *env.hookLog)
	})
}

func TestManager_UpdateSettingsRejectsInvalid(t *testing.T) {
	env := newManagerEnv(t)
	ctx := context.Background()

	inst, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
	require.NoError(t, err)
	_, err = env.manager.UpdateSettings(ctx, env.tenantID, inst.ID,
		map[string]any{"points_per_purchase": float64(25)}, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		config map[string]any
	}{
		{"missing required field", map[string]any{"other": "x"}},
		{"below minimum", map[string]any{"points_per_purchase": float64(0)}},
		{"wrong type", map[string]any{"points_per_purchase": "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.manager.UpdateSettings(ctx, env.tenantID, inst.ID, tt.config, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			errutil.AssertErrorCode(t, err, CodeSettingsInvalid)
		})
	}

	got, err := env.manager.GetSettings(ctx, env.tenantID, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"points_per_purchase": float64(25)}, got,
		"rejected payloads persist nothing")
}

func TestManager_SettingsTenantMismatch(t *testing.T) {
	env := newManagerEnv(t)
	ctx := context.Background()

	inst, err := env.manager.Install(ctx, env.tenantID, "loyalty-points")
	require.NoError(t, err)

	_, err = env.manager.GetSettings(ctx, ulid.Make(), inst.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.manager.UpdateSettings(ctx, ulid.Make(), inst.ID,
		map[string]any{"points_per_purchase": float64(10)}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
