// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import (
	"fmt"
	"sort"
)

// ConfigSchema is the manifest-declared contract for tenant-configurable
// settings. It is a minimum contract, not a closed one: keys not declared
// under Properties are tolerated.
type ConfigSchema struct {
	Properties map[string]PropertySchema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"   yaml:"required,omitempty"`
}

// PropertySchema declares the expected runtime type of one settings field
// plus optional refinements. Pointer fields distinguish "not declared" from
// a declared zero.
type PropertySchema struct {
	Type      string   `json:"type"                yaml:"type"`
	MinLength *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Minimum   *float64 `json:"minimum,omitempty"   yaml:"minimum,omitempty"`
	Maximum   *float64 `json:"maximum,omitempty"   yaml:"maximum,omitempty"`
	MinItems  *int     `json:"minItems,omitempty"  yaml:"minItems,omitempty"`
	MaxItems  *int     `json:"maxItems,omitempty"  yaml:"maxItems,omitempty"`
}

// ConfigValidationResult is the outcome of validating a settings payload
// against a config schema.
type ConfigValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateConfig validates a settings payload against the declared schema.
// A nil schema accepts any config (validation is opt-in). Violations
// accumulate; the payload is rejected as a whole if any check fails.
func ValidateConfig(config map[string]any, schema *ConfigSchema) ConfigValidationResult {
	if schema == nil {
		return ConfigValidationResult{Valid: true}
	}

	var errs []string

	for _, field := range schema.Required {
		if _, ok := config[field]; !ok {
			errs = append(errs, fmt.Sprintf("Required field missing: %s", field))
		}
	}

	// Deterministic error ordering across runs.
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value, ok := config[name]
		if !ok {
			continue
		}
		errs = append(errs, validateProperty(name, value, schema.Properties[name])...)
	}

	if len(errs) > 0 {
		return ConfigValidationResult{Errors: errs}
	}
	return ConfigValidationResult{Valid: true}
}

// validateProperty checks one present field against its declared type and
// refinements.
func validateProperty(name string, value any, prop PropertySchema) []string {
	var errs []string

	switch prop.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			return []string{typeMismatch(name, "string")}
		}
		if prop.MinLength != nil && len(s) < *prop.MinLength {
			errs = append(errs, fmt.Sprintf("Field %s must be at least %d characters", name, *prop.MinLength))
		}
		if prop.MaxLength != nil && len(s) > *prop.MaxLength {
			errs = append(errs, fmt.Sprintf("Field %s must be at most %d characters", name, *prop.MaxLength))
		}

	case "number":
		n, ok := asNumber(value)
		if !ok {
			return []string{typeMismatch(name, "number")}
		}
		if prop.Minimum != nil && n < *prop.Minimum {
			errs = append(errs, fmt.Sprintf("Field %s must be at least %v (minimum)", name, *prop.Minimum))
		}
		if prop.Maximum != nil && n > *prop.Maximum {
			errs = append(errs, fmt.Sprintf("Field %s must be at most %v (maximum)", name, *prop.Maximum))
		}

	case "boolean":
		if _, ok := value.(bool); !ok {
			return []string{typeMismatch(name, "boolean")}
		}

	case "array":
		arr, ok := value.([]any)
		if !ok {
			return []string{typeMismatch(name, "array")}
		}
		if prop.MinItems != nil && len(arr) < *prop.MinItems {
			errs = append(errs, fmt.Sprintf("Field %s must have at least %d items", name, *prop.MinItems))
		}
		if prop.MaxItems != nil && len(arr) > *prop.MaxItems {
			errs = append(errs, fmt.Sprintf("Field %s must have at most %d items", name, *prop.MaxItems))
		}

	case "object":
		if _, ok := value.(map[string]any); !ok {
			return []string{typeMismatch(name, "object")}
		}

	default:
		errs = append(errs, fmt.Sprintf("Field %s has unknown declared type %q", name, prop.Type))
	}

	return errs
}

func typeMismatch(name, want string) string {
	return fmt.Sprintf("Field %s must be of type %s", name, want)
}

// asNumber accepts the numeric representations a settings payload can carry
// depending on whether it was decoded from JSON (float64) or built in-process.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// SanitizeSettings normalizes a settings payload before persistence. It
// never drops keys (the schema is a minimum contract); it only guarantees a
// non-nil object so installs start from an empty configuration. The same
// sanitizer runs for the install-time default and tenant updates.
func SanitizeSettings(config map[string]any) map[string]any {
	if config == nil {
		return map[string]any{}
	}
	return config
}
