// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeloft/storeloft/pkg/errutil"
)

func TestSettingsRepository_Get(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface, id ulid.ULID)
		want      map[string]any
		wantErr   bool
		wantCode  string
	}{
		{
			name: "retrieves stored config",
			setupMock: func(mock pgxmock.PgxPoolIface, id ulid.ULID) {
				rows := pgxmock.NewRows([]string{"config"}).
					AddRow([]byte(`{"points_per_purchase": 10}`))
				mock.ExpectQuery(`SELECT config FROM plugin_settings`).
					WithArgs(id.String()).
					WillReturnRows(rows)
			},
			want: map[string]any{"points_per_purchase": float64(10)},
		},
		{
			name: "missing row is an empty object",
			setupMock: func(mock pgxmock.PgxPoolIface, id ulid.ULID) {
				mock.ExpectQuery(`SELECT config FROM plugin_settings`).
					WithArgs(id.String()).
					WillReturnRows(pgxmock.NewRows([]string{"config"}))
			},
			want: map[string]any{},
		},
		{
			name: "sql null is an empty object",
			setupMock: func(mock pgxmock.PgxPoolIface, id ulid.ULID) {
				rows := pgxmock.NewRows([]string{"config"}).AddRow([]byte(nil))
				mock.ExpectQuery(`SELECT config FROM plugin_settings`).
					WithArgs(id.String()).
					WillReturnRows(rows)
			},
			want: map[string]any{},
		},
		{
			name: "json null is an empty object",
			setupMock: func(mock pgxmock.PgxPoolIface, id ulid.ULID) {
				rows := pgxmock.NewRows([]string{"config"}).AddRow([]byte(`null`))
				mock.ExpectQuery(`SELECT config FROM plugin_settings`).
					WithArgs(id.String()).
					WillReturnRows(rows)
			},
			want: map[string]any{},
		},
		{
			name: "database error wrapped",
			setupMock: func(mock pgxmock.PgxPoolIface, id ulid.ULID) {
				mock.ExpectQuery(`SELECT config FROM plugin_settings`).
					WithArgs(id.String()).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr:  true,
			wantCode: "SETTINGS_GET_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			id := ulid.Make()
			tt.setupMock(mock, id)

			got, err := NewSettingsRepository(mock).Get(context.Background(), id)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestSettingsRepository_Put(t *testing.T) {
	t.Run("upserts payload", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := ulid.Make()
		mock.ExpectExec(`INSERT INTO plugin_settings`).
			WithArgs(id.String(), []byte(`{"points_per_purchase":25}`)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = NewSettingsRepository(mock).Put(context.Background(), id,
			map[string]any{"points_per_purchase": 25})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil config stored as empty object", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := ulid.Make()
		mock.ExpectExec(`INSERT INTO plugin_settings`).
			WithArgs(id.String(), []byte(`{}`)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewSettingsRepository(mock).Put(context.Background(), id, nil))
	})

	t.Run("exec error wrapped", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := ulid.Make()
		mock.ExpectExec(`INSERT INTO plugin_settings`).
			WithArgs(id.String(), []byte(`{}`)).
			WillReturnError(errors.New("disk full"))

		err = NewSettingsRepository(mock).Put(context.Background(), id, nil)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SETTINGS_PUT_FAILED")
	})
}

func TestSettingsRepository_Delete(t *testing.T) {
	t.Run("deletes row", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := ulid.Make()
		mock.ExpectExec(`DELETE FROM plugin_settings`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, NewSettingsRepository(mock).Delete(context.Background(), id))
	})

	t.Run("absent row is not an error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := ulid.Make()
		mock.ExpectExec(`DELETE FROM plugin_settings`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		require.NoError(t, NewSettingsRepository(mock).Delete(context.Background(), id))
	})
}
