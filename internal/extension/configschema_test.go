// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }

func loyaltySchema() *ConfigSchema {
	return &ConfigSchema{
		Properties: map[string]PropertySchema{
			"points_per_purchase": {Type: "number", Minimum: floatPtr(1), Maximum: floatPtr(1000)},
			"welcome_message":     {Type: "string", MinLength: intPtr(1), MaxLength: intPtr(200)},
			"tiers":               {Type: "array", MinItems: intPtr(1), MaxItems: intPtr(5)},
			"enabled":             {Type: "boolean"},
		},
		Required: []string{"points_per_purchase"},
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]any
		schema   *ConfigSchema
		valid    bool
		wantErrs []string
	}{
		{
			name:   "nil schema accepts anything",
			config: map[string]any{"whatever": 42},
			schema: nil,
			valid:  true,
		},
		{
			name:   "valid payload",
			config: map[string]any{"points_per_purchase": float64(10), "welcome_message": "hi"},
			schema: loyaltySchema(),
			valid:  true,
		},
		{
			name:     "required field missing",
			config:   map[string]any{"welcome_message": "hi"},
			schema:   loyaltySchema(),
			wantErrs: []string{"Required field missing: points_per_purchase"},
		},
		{
			name:     "number below minimum",
			config:   map[string]any{"points_per_purchase": float64(0)},
			schema:   loyaltySchema(),
			wantErrs: []string{"Field points_per_purchase must be at least 1 (minimum)"},
		},
		{
			name:     "number above maximum",
			config:   map[string]any{"points_per_purchase": float64(5000)},
			schema:   loyaltySchema(),
			wantErrs: []string{"Field points_per_purchase must be at most 1000 (maximum)"},
		},
		{
			name:     "wrong type",
			config:   map[string]any{"points_per_purchase": float64(10), "welcome_message": 7},
			schema:   loyaltySchema(),
			wantErrs: []string{"Field welcome_message must be of type string"},
		},
		{
			name:     "string below min length",
			config:   map[string]any{"points_per_purchase": float64(10), "welcome_message": ""},
			schema:   loyaltySchema(),
			wantErrs: []string{"Field welcome_message must be at least 1 characters"},
		},
		{
			name:     "array below min items",
			config:   map[string]any{"points_per_purchase": float64(10), "tiers": []any{}},
			schema:   loyaltySchema(),
			wantErrs: []string{"Field tiers must have at least 1 items"},
		},
		{
			name:     "boolean mismatch",
			config:   map[string]any{"points_per_purchase": float64(10), "enabled": "yes"},
			schema:   loyaltySchema(),
			wantErrs: []string{"Field enabled must be of type boolean"},
		},
		{
			name: "violations accumulate",
			config: map[string]any{
				"welcome_message": 7,
				"enabled":         "yes",
			},
			schema: loyaltySchema(),
			wantErrs: []string{
				"Required field missing: points_per_purchase",
				"Field enabled must be of type boolean",
				"Field welcome_message must be of type string",
			},
		},
		{
			name:   "undeclared keys tolerated",
			config: map[string]any{"points_per_purchase": float64(10), "custom_extra": "kept"},
			schema: loyaltySchema(),
			valid:  true,
		},
		{
			name:   "int accepted as number",
			config: map[string]any{"points_per_purchase": 10},
			schema: loyaltySchema(),
			valid:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateConfig(tt.config, tt.schema)
			if tt.valid {
				assert.True(t, result.Valid, "unexpected errors: %v", result.Errors)
				assert.Empty(t, result.Errors)
				return
			}
			require.False(t, result.Valid)
			assert.Equal(t, tt.wantErrs, result.Errors)
		})
	}
}

func TestValidateConfig_UnknownDeclaredType(t *testing.T) {
	schema := &ConfigSchema{Properties: map[string]PropertySchema{
		"field": {Type: "uuid"},
	}}
	result := ValidateConfig(map[string]any{"field": "x"}, schema)
	require.False(t, result.Valid)
	assert.Equal(t, []string{`Field field has unknown declared type "uuid"`}, result.Errors)
}

func TestSanitizeSettings(t *testing.T) {
	assert.Equal(t, map[string]any{}, SanitizeSettings(nil))

	in := map[string]any{"keep": "me", "extra": 1}
	assert.Equal(t, in, SanitizeSettings(in), "keys are never dropped")
}
