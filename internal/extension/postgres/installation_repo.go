// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/storeloft/storeloft/internal/extension"
)

// InstallationRepository implements extension.InstallationRepository using
// PostgreSQL.
type InstallationRepository struct {
	pool querier
}

// NewInstallationRepository creates a new PostgreSQL installation repository.
func NewInstallationRepository(pool querier) *InstallationRepository {
	return &InstallationRepository{pool: pool}
}

// Create persists a new installation. A unique violation on
// (tenant_id, plugin_key) surfaces as extension.ErrConflict; the index is
// the authoritative race-breaker for concurrent installs.
func (r *InstallationRepository) Create(ctx context.Context, inst *extension.Installation) error {
	_, err := db(ctx, r.pool).Exec(ctx, `
		INSERT INTO plugin_installations (id, tenant_id, plugin_key, active, version, installed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
	`, inst.ID.String(), inst.TenantID.String(), inst.PluginKey, inst.Active, inst.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code(extension.CodeAlreadyInstalled).
				With("tenant", inst.TenantID.String()).
				With("plugin", inst.PluginKey).
				Wrapf(extension.ErrConflict, "plugin %s is already installed", inst.PluginKey)
		}
		return oops.Code("INSTALLATION_CREATE_FAILED").With("id", inst.ID.String()).Wrap(err)
	}
	return nil
}

// GetByID retrieves an installation by ID.
func (r *InstallationRepository) GetByID(ctx context.Context, id ulid.ULID) (*extension.Installation, error) {
	row := db(ctx, r.pool).QueryRow(ctx, `
		SELECT id, tenant_id, plugin_key, active, version, installed_at, updated_at
		FROM plugin_installations WHERE id = $1
	`, id.String())
	inst, err := scanInstallationRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(extension.CodeInstallationNotFound).
			With("id", id.String()).
			Wrapf(extension.ErrNotFound, "installation %s not found", id)
	}
	if err != nil {
		return nil, oops.Code("INSTALLATION_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	return inst, nil
}

// GetByTenantAndPlugin retrieves the tenant's installation of a plugin.
func (r *InstallationRepository) GetByTenantAndPlugin(ctx context.Context, tenantID ulid.ULID, pluginKey string) (*extension.Installation, error) {
	row := db(ctx, r.pool).QueryRow(ctx, `
		SELECT id, tenant_id, plugin_key, active, version, installed_at, updated_at
		FROM plugin_installations WHERE tenant_id = $1 AND plugin_key = $2
	`, tenantID.String(), pluginKey)
	inst, err := scanInstallationRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code(extension.CodeInstallationNotFound).
			With("tenant", tenantID.String()).
			With("plugin", pluginKey).
			Wrapf(extension.ErrNotFound, "plugin %s is not installed", pluginKey)
	}
	if err != nil {
		return nil, oops.Code("INSTALLATION_GET_FAILED").With("plugin", pluginKey).Wrap(err)
	}
	return inst, nil
}

// SetActive flips an installation's active flag.
func (r *InstallationRepository) SetActive(ctx context.Context, id ulid.ULID, active bool) error {
	result, err := db(ctx, r.pool).Exec(ctx, `
		UPDATE plugin_installations SET active = $2, updated_at = now() WHERE id = $1
	`, id.String(), active)
	if err != nil {
		return oops.Code("INSTALLATION_UPDATE_FAILED").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code(extension.CodeInstallationNotFound).
			With("id", id.String()).
			Wrapf(extension.ErrNotFound, "installation %s not found", id)
	}
	return nil
}

// Delete removes an installation. Settings rows follow via ON DELETE CASCADE.
func (r *InstallationRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := db(ctx, r.pool).Exec(ctx, `
		DELETE FROM plugin_installations WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("INSTALLATION_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code(extension.CodeInstallationNotFound).
			With("id", id.String()).
			Wrapf(extension.ErrNotFound, "installation %s not found", id)
	}
	return nil
}

// ListByTenant returns all of a tenant's installations, active or not,
// most recently installed first.
func (r *InstallationRepository) ListByTenant(ctx context.Context, tenantID ulid.ULID) ([]*extension.Installation, error) {
	rows, err := db(ctx, r.pool).Query(ctx, `
		SELECT id, tenant_id, plugin_key, active, version, installed_at, updated_at
		FROM plugin_installations WHERE tenant_id = $1
		ORDER BY installed_at DESC
	`, tenantID.String())
	if err != nil {
		return nil, oops.Code("INSTALLATION_QUERY_FAILED").With("tenant", tenantID.String()).Wrap(err)
	}
	defer rows.Close()

	return scanInstallations(rows)
}

// ListActiveByProfile returns installations on the profile's tenant that are
// installation-active and whose catalog entry is still active.
func (r *InstallationRepository) ListActiveByProfile(ctx context.Context, profileID ulid.ULID) ([]*extension.Installation, error) {
	rows, err := db(ctx, r.pool).Query(ctx, `
		SELECT i.id, i.tenant_id, i.plugin_key, i.active, i.version, i.installed_at, i.updated_at
		FROM plugin_installations i
		JOIN profiles pr ON pr.tenant_id = i.tenant_id
		JOIN plugins p ON p.key = i.plugin_key
		WHERE pr.id = $1 AND i.active AND p.active
		ORDER BY i.installed_at
	`, profileID.String())
	if err != nil {
		return nil, oops.Code("INSTALLATION_QUERY_FAILED").With("profile", profileID.String()).Wrap(err)
	}
	defer rows.Close()

	return scanInstallations(rows)
}

type installationRow interface {
	Scan(dest ...any) error
}

func scanInstallationRow(row installationRow) (*extension.Installation, error) {
	var (
		inst   extension.Installation
		idStr  string
		tenant string
	)
	if err := row.Scan(&idStr, &tenant, &inst.PluginKey, &inst.Active,
		&inst.Version, &inst.InstalledAt, &inst.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse id").With("id", idStr).Wrap(err)
	}
	tenantID, err := ulid.Parse(tenant)
	if err != nil {
		return nil, oops.With("operation", "parse tenant_id").With("tenant_id", tenant).Wrap(err)
	}
	inst.ID = id
	inst.TenantID = tenantID
	return &inst, nil
}

func scanInstallations(rows pgx.Rows) ([]*extension.Installation, error) {
	var installs []*extension.Installation
	for rows.Next() {
		inst, err := scanInstallationRow(rows)
		if err != nil {
			return nil, oops.Code("INSTALLATION_SCAN_FAILED").Wrap(err)
		}
		installs = append(installs, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("INSTALLATION_QUERY_FAILED").Wrap(err)
	}
	return installs, nil
}

var _ extension.InstallationRepository = (*InstallationRepository)(nil)
