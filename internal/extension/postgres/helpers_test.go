// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSettings(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want map[string]any
	}{
		{"nil payload", nil, map[string]any{}},
		{"empty payload", []byte{}, map[string]any{}},
		{"json null", []byte(`null`), map[string]any{}},
		{"empty object", []byte(`{}`), map[string]any{}},
		{"populated", []byte(`{"a": 1}`), map[string]any{"a": float64(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeSettings(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("malformed payload", func(t *testing.T) {
		_, err := decodeSettings([]byte(`{broken`))
		assert.Error(t, err)
	})
}

func TestDecodeManifest(t *testing.T) {
	t.Run("empty column", func(t *testing.T) {
		m, err := decodeManifest(nil)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("populated", func(t *testing.T) {
		m, err := decodeManifest([]byte(`{"plugin_key": "loyalty-points", "version": "1.2.0", "type": "mixed"}`))
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "loyalty-points", m.Key)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := decodeManifest([]byte(`not json`))
		assert.Error(t, err)
	})
}
