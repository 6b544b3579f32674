// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/storeloft/storeloft/internal/extension"
)

// CatalogRepository implements extension.CatalogRepository using PostgreSQL.
type CatalogRepository struct {
	pool querier
}

// NewCatalogRepository creates a new PostgreSQL catalog repository.
func NewCatalogRepository(pool querier) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetByKey retrieves a catalog entry by plugin key.
func (r *CatalogRepository) GetByKey(ctx context.Context, key string) (*extension.Plugin, error) {
	row := db(ctx, r.pool).QueryRow(ctx, `
		SELECT key, name, version, type, manifest, active, premium, price_cents, created_at, updated_at
		FROM plugins WHERE key = $1
	`, key)
	plugin, err := scanPluginRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(extension.CodePluginNotFound).
			With("plugin", key).
			Wrapf(extension.ErrNotFound, "plugin %s not found", key)
	}
	if err != nil {
		return nil, oops.Code("PLUGIN_GET_FAILED").With("plugin", key).Wrap(err)
	}
	return plugin, nil
}

// List returns the full catalog ordered by key, inactive entries included.
func (r *CatalogRepository) List(ctx context.Context) ([]*extension.Plugin, error) {
	rows, err := db(ctx, r.pool).Query(ctx, `
		SELECT key, name, version, type, manifest, active, premium, price_cents, created_at, updated_at
		FROM plugins ORDER BY key
	`)
	if err != nil {
		return nil, oops.Code("PLUGIN_QUERY_FAILED").Wrap(err)
	}
	defer rows.Close()

	var plugins []*extension.Plugin
	for rows.Next() {
		plugin, err := scanPluginRow(rows)
		if err != nil {
			return nil, oops.Code("PLUGIN_SCAN_FAILED").Wrap(err)
		}
		plugins = append(plugins, plugin)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("PLUGIN_QUERY_FAILED").Wrap(err)
	}
	return plugins, nil
}

// Upsert inserts or updates a catalog entry. Used by operator seeding, not
// by tenant-facing flows.
func (r *CatalogRepository) Upsert(ctx context.Context, p *extension.Plugin) error {
	manifest, err := encodeJSON(p.Manifest, "manifest")
	if err != nil {
		return err
	}
	_, err = db(ctx, r.pool).Exec(ctx, `
		INSERT INTO plugins (key, name, version, type, manifest, active, premium, price_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (key) DO UPDATE SET
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			type = EXCLUDED.type,
			manifest = EXCLUDED.manifest,
			active = EXCLUDED.active,
			premium = EXCLUDED.premium,
			price_cents = EXCLUDED.price_cents,
			updated_at = now()
	`, p.Key, p.Name, p.Version, string(p.Type), manifest, p.Active, p.Premium, p.PriceCents)
	if err != nil {
		return oops.Code("PLUGIN_UPSERT_FAILED").With("plugin", p.Key).Wrap(err)
	}
	return nil
}

// pluginRow is the scan shape shared by GetByKey and List.
type pluginRow interface {
	Scan(dest ...any) error
}

func scanPluginRow(row pluginRow) (*extension.Plugin, error) {
	var (
		p        extension.Plugin
		typeStr  string
		manifest []byte
		created  time.Time
		updated  time.Time
	)
	if err := row.Scan(&p.Key, &p.Name, &p.Version, &typeStr, &manifest,
		&p.Active, &p.Premium, &p.PriceCents, &created, &updated); err != nil {
		return nil, err
	}
	m, err := decodeManifest(manifest)
	if err != nil {
		return nil, err
	}
	p.Type = extension.ExtensionType(typeStr)
	p.Manifest = m
	p.CreatedAt = created
	p.UpdatedAt = updated
	return &p, nil
}

var _ extension.CatalogRepository = (*CatalogRepository)(nil)
