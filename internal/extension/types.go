// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Plugin is a catalog entry: global, author-supplied, mutated only by
// platform operators. Tenant actions never change it.
type Plugin struct {
	Key        string
	Name       string
	Version    string
	Type       ExtensionType
	Manifest   *Manifest
	Active     bool
	Premium    bool
	PriceCents int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Installation records one plugin being enabled for one tenant. The version
// is pinned at install time and does not follow catalog updates.
type Installation struct {
	ID          ulid.ULID
	TenantID    ulid.ULID
	PluginKey   string
	Active      bool
	Version     string
	InstalledAt time.Time
	UpdatedAt   time.Time
}

// InstalledPlugin is the ListInstalled projection: an installation joined
// with its current settings and catalog display data.
type InstalledPlugin struct {
	Installation Installation
	PluginName   string
	Settings     map[string]any
}

// ActivePlugin is the minimal tuple a storefront renderer needs to enumerate
// widgets for a profile without loading them.
type ActivePlugin struct {
	PluginKey      string         `json:"pluginKey"`
	InstallationID ulid.ULID      `json:"installationId"`
	Config         map[string]any `json:"config"`
}

// CatalogRepository reads and seeds the global plugin catalog.
type CatalogRepository interface {
	GetByKey(ctx context.Context, key string) (*Plugin, error)
	List(ctx context.Context) ([]*Plugin, error)
	Upsert(ctx context.Context, p *Plugin) error
}

// InstallationRepository persists per-tenant installations. Create must
// surface ErrConflict when the (tenant, plugin) pair already exists; the
// database unique index is the authoritative race-breaker.
type InstallationRepository interface {
	Create(ctx context.Context, inst *Installation) error
	GetByID(ctx context.Context, id ulid.ULID) (*Installation, error)
	GetByTenantAndPlugin(ctx context.Context, tenantID ulid.ULID, pluginKey string) (*Installation, error)
	SetActive(ctx context.Context, id ulid.ULID, active bool) error
	Delete(ctx context.Context, id ulid.ULID) error
	ListByTenant(ctx context.Context, tenantID ulid.ULID) ([]*Installation, error)
	// ListActiveByProfile returns installations on the profile's tenant
	// that are both installation-active and catalog-active.
	ListActiveByProfile(ctx context.Context, profileID ulid.ULID) ([]*Installation, error)
}

// SettingsRepository persists per-installation configuration. Get returns an
// empty map when nothing has been persisted yet.
type SettingsRepository interface {
	Get(ctx context.Context, installationID ulid.ULID) (map[string]any, error)
	Put(ctx context.Context, installationID ulid.ULID, config map[string]any) error
	Delete(ctx context.Context, installationID ulid.ULID) error
}

// ProfileRepository maps a public storefront profile to its owning tenant.
type ProfileRepository interface {
	TenantForProfile(ctx context.Context, profileID ulid.ULID) (ulid.ULID, error)
}

// Transactor runs fn inside one atomic unit. Repository calls made with the
// context passed to fn participate in the same transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
