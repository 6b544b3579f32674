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

// ProfileRepository implements extension.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	pool querier
}

// NewProfileRepository creates a new PostgreSQL profile repository.
func NewProfileRepository(pool querier) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// TenantForProfile resolves a public storefront profile to its owning tenant.
func (r *ProfileRepository) TenantForProfile(ctx context.Context, profileID ulid.ULID) (ulid.ULID, error) {
	var tenant string
	err := db(ctx, r.pool).QueryRow(ctx, `
		SELECT tenant_id FROM profiles WHERE id = $1
	`, profileID.String()).Scan(&tenant)
	if errors.Is(err, pgx.ErrNoRows) {
		return ulid.ULID{}, oops.Code(extension.CodeProfileNotFound).
			With("profile", profileID.String()).
			Wrapf(extension.ErrNotFound, "profile %s not found", profileID)
	}
	if err != nil {
		return ulid.ULID{}, oops.Code("PROFILE_GET_FAILED").
			With("profile", profileID.String()).
			Wrap(err)
	}

	tenantID, err := ulid.Parse(tenant)
	if err != nil {
		return ulid.ULID{}, oops.With("operation", "parse tenant_id").With("tenant_id", tenant).Wrap(err)
	}
	return tenantID, nil
}

var _ extension.ProfileRepository = (*ProfileRepository)(nil)
