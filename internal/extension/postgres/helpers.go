// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/storeloft/storeloft/internal/extension"
)

// querier abstracts query execution over *pgxpool.Pool, pgx.Tx, and the
// pgxmock pool used in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// beginner is a querier that can also open transactions. Satisfied by
// *pgxpool.Pool and pgxmock.PgxPoolIface.
type beginner interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// txKey is the context key under which the Transactor stores the active
// pgx.Tx.
type txKey struct{}

// db returns the active transaction from ctx when one is present, otherwise
// the repository's pool. Repositories route every statement through this so
// they transparently join a Transactor-managed transaction.
func db(ctx context.Context, pool querier) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// encodeJSON marshals a value for a JSONB column.
func encodeJSON(v any, field string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, oops.With("operation", "encode "+field).Wrap(err)
	}
	return raw, nil
}

// decodeSettings parses a JSONB settings payload, normalizing SQL NULL to an
// empty object.
func decodeSettings(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var config map[string]any
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, oops.With("operation", "decode settings").Wrap(err)
	}
	if config == nil {
		config = map[string]any{}
	}
	return config, nil
}

// decodeManifest parses a JSONB manifest column.
func decodeManifest(raw []byte) (*extension.Manifest, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m extension.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, oops.With("operation", "decode manifest").Wrap(err)
	}
	return &m, nil
}
