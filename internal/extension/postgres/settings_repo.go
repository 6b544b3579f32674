// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/storeloft/storeloft/internal/extension"
)

// SettingsRepository implements extension.SettingsRepository using
// PostgreSQL. One JSONB row per installation.
type SettingsRepository struct {
	pool querier
}

// NewSettingsRepository creates a new PostgreSQL settings repository.
func NewSettingsRepository(pool querier) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// Get retrieves an installation's settings. A missing row is an empty
// object, not an error; settings are always optional.
func (r *SettingsRepository) Get(ctx context.Context, installationID ulid.ULID) (map[string]any, error) {
	var raw []byte
	err := db(ctx, r.pool).QueryRow(ctx, `
		SELECT config FROM plugin_settings WHERE installation_id = $1
	`, installationID.String()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, oops.Code("SETTINGS_GET_FAILED").
			With("installation", installationID.String()).
			Wrap(err)
	}
	return decodeSettings(raw)
}

// Put stores an installation's settings, replacing any previous payload.
func (r *SettingsRepository) Put(ctx context.Context, installationID ulid.ULID, config map[string]any) error {
	raw, err := encodeJSON(extension.SanitizeSettings(config), "settings")
	if err != nil {
		return err
	}
	_, err = db(ctx, r.pool).Exec(ctx, `
		INSERT INTO plugin_settings (installation_id, config, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (installation_id) DO UPDATE SET
			config = EXCLUDED.config,
			updated_at = now()
	`, installationID.String(), raw)
	if err != nil {
		return oops.Code("SETTINGS_PUT_FAILED").
			With("installation", installationID.String()).
			Wrap(err)
	}
	return nil
}

// Delete removes an installation's settings row. Deleting absent settings is
// not an error.
func (r *SettingsRepository) Delete(ctx context.Context, installationID ulid.ULID) error {
	_, err := db(ctx, r.pool).Exec(ctx, `
		DELETE FROM plugin_settings WHERE installation_id = $1
	`, installationID.String())
	if err != nil {
		return oops.Code("SETTINGS_DELETE_FAILED").
			With("installation", installationID.String()).
			Wrap(err)
	}
	return nil
}

var _ extension.SettingsRepository = (*SettingsRepository)(nil)
