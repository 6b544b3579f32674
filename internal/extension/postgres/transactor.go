// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/storeloft/storeloft/internal/extension"
)

// Transactor implements extension.Transactor over a pgx connection pool. It
// stores the active pgx.Tx in context so repository methods called with the
// inner context participate in the same transaction.
type Transactor struct {
	pool beginner
}

// NewTransactor creates a Transactor backed by the given connection pool.
func NewTransactor(pool beginner) *Transactor {
	return &Transactor{pool: pool}
}

// InTransaction begins a transaction, stores it in context, and calls fn.
// If fn returns nil, the transaction is committed. Otherwise it is rolled back.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

var _ extension.Transactor = (*Transactor)(nil)
