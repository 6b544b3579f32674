// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

// Package extension implements the Storeloft plugin extension runtime:
// manifest validation, per-tenant installation lifecycle, capability
// sandboxing, and dynamic artifact resolution.
package extension

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// ExtensionType identifies which extension points a plugin provides.
type ExtensionType string

// Extension types supported by the platform.
const (
	TypeWidget          ExtensionType = "widget"
	TypeDashboardModule ExtensionType = "dashboard_module"
	TypeBackendHandler  ExtensionType = "backend_handler"
	TypeMixed           ExtensionType = "mixed"
)

// LifecycleHooks references the artifacts executed around installation
// state transitions. Each value is an entry-point path; empty means the
// hook is not declared.
type LifecycleHooks struct {
	OnInit       string `json:"on_init,omitempty"       yaml:"on_init,omitempty"`
	OnInstall    string `json:"on_install,omitempty"    yaml:"on_install,omitempty"`
	OnUninstall  string `json:"on_uninstall,omitempty"  yaml:"on_uninstall,omitempty"`
	OnActivate   string `json:"on_activate,omitempty"   yaml:"on_activate,omitempty"`
	OnDeactivate string `json:"on_deactivate,omitempty" yaml:"on_deactivate,omitempty"`
}

// Manifest is a plugin's declarative description of its entry points, hooks,
// permissions, and configuration contract. Immutable per version.
type Manifest struct {
	Key                   string          `json:"plugin_key"                        yaml:"plugin_key"`
	Name                  string          `json:"name,omitempty"                    yaml:"name,omitempty"`
	Version               string          `json:"version"                           yaml:"version"`
	Type                  ExtensionType   `json:"type"                              yaml:"type"`
	PublicWidgetPath      string          `json:"public_widget_path,omitempty"      yaml:"public_widget_path,omitempty"`
	DashboardSettingsPath string          `json:"dashboard_settings_path,omitempty" yaml:"dashboard_settings_path,omitempty"`
	BackendHandlerPath    string          `json:"backend_handler_path,omitempty"    yaml:"backend_handler_path,omitempty"`
	ConfigSchema          *ConfigSchema   `json:"config_schema,omitempty"           yaml:"config_schema,omitempty"`
	Hooks                 *LifecycleHooks `json:"hooks,omitempty"                   yaml:"hooks,omitempty"`
	Permissions           []string        `json:"permissions,omitempty"             yaml:"permissions,omitempty"`
}

// keyPattern validates plugin keys: lowercase alphanumerics, underscore,
// hyphen. The key is the stable identifier plugins are cached and installed
// under, so it never changes across versions.
var keyPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidationResult is the outcome of manifest validation. The manifest is
// rejected as a whole when any check fails; Errors then lists every
// violation found.
type ValidationResult struct {
	Valid    bool
	Manifest *Manifest
	Errors   []string
}

// ValidateManifest validates a raw manifest JSON document structurally and
// semantically. Pure function over its input.
func ValidateManifest(raw []byte) ValidationResult {
	if len(raw) == 0 {
		return ValidationResult{Errors: []string{"manifest is empty"}}
	}

	if err := ValidateManifestDocument(raw); err != nil {
		return ValidationResult{Errors: []string{FormatSchemaError(err)}}
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return ValidationResult{Errors: []string{fmt.Sprintf("invalid JSON: %v", err)}}
	}

	if errs := m.Validate(); len(errs) > 0 {
		return ValidationResult{Errors: errs}
	}

	return ValidationResult{Valid: true, Manifest: &m}
}

// Validate runs the semantic checks on an already-parsed manifest and
// returns every violation found. An empty result means the manifest is
// acceptable. A missing display name defaults to the key.
func (m *Manifest) Validate() []string {
	var errs []string

	if m.Key == "" || !keyPattern.MatchString(m.Key) {
		errs = append(errs, fmt.Sprintf("plugin_key %q must match ^[a-z0-9_-]+$", m.Key))
	}
	if m.Name == "" {
		m.Name = m.Key
	}

	if !validVersion(m.Version) {
		errs = append(errs, fmt.Sprintf("version %q must be in MAJOR.MINOR.PATCH format", m.Version))
	}

	if m.PublicWidgetPath == "" && m.DashboardSettingsPath == "" && m.BackendHandlerPath == "" {
		errs = append(errs, "at least one entry point path is required")
	}

	switch m.Type {
	case TypeWidget:
		if m.PublicWidgetPath == "" {
			errs = append(errs, `type "widget" requires public_widget_path`)
		}
	case TypeDashboardModule:
		if m.DashboardSettingsPath == "" {
			errs = append(errs, `type "dashboard_module" requires dashboard_settings_path`)
		}
	case TypeBackendHandler:
		if m.BackendHandlerPath == "" {
			errs = append(errs, `type "backend_handler" requires backend_handler_path`)
		}
	case TypeMixed:
		// Any combination; the at-least-one check above applies.
	default:
		errs = append(errs, fmt.Sprintf("type %q must be one of widget, dashboard_module, backend_handler, mixed", m.Type))
	}

	for i, p := range m.Permissions {
		if p == "" {
			errs = append(errs, fmt.Sprintf("permission %d is empty", i))
		}
	}

	return errs
}

// HookPath returns the entry-point path declared for the named hook, or ""
// when the hook is not declared.
func (m *Manifest) HookPath(name HookName) string {
	if m.Hooks == nil {
		return ""
	}
	switch name {
	case HookOnInit:
		return m.Hooks.OnInit
	case HookOnInstall:
		return m.Hooks.OnInstall
	case HookOnUninstall:
		return m.Hooks.OnUninstall
	case HookOnActivate:
		return m.Hooks.OnActivate
	case HookOnDeactivate:
		return m.Hooks.OnDeactivate
	default:
		return ""
	}
}

// EntryPath returns the path declared for an entry point, or "" when the
// manifest does not supply it.
func (m *Manifest) EntryPath(ep EntryPoint) string {
	switch ep {
	case EntryPublicWidget:
		return m.PublicWidgetPath
	case EntryDashboardSettings:
		return m.DashboardSettingsPath
	case EntryBackendHandler:
		return m.BackendHandlerPath
	default:
		return ""
	}
}

// validVersion reports whether v is a strict MAJOR.MINOR.PATCH version with
// no prerelease or build metadata.
func validVersion(v string) bool {
	parsed, err := semver.StrictNewVersion(v)
	if err != nil {
		return false
	}
	return parsed.Prerelease() == "" && parsed.Metadata() == ""
}

// ParseManifestYAML validates a plugin.yaml manifest as shipped by plugin
// authors. The YAML is converted to its JSON representation so the same
// schema and semantic checks apply regardless of on-disk format.
func ParseManifestYAML(data []byte) ValidationResult {
	if len(data) == 0 {
		return ValidationResult{Errors: []string{"manifest is empty"}}
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ValidationResult{Errors: []string{fmt.Sprintf("invalid YAML: %v", err)}}
	}

	raw, err := json.Marshal(convertToJSONTypes(doc))
	if err != nil {
		return ValidationResult{Errors: []string{fmt.Sprintf("manifest not representable as JSON: %v", err)}}
	}

	return ValidateManifest(raw)
}

// convertToJSONTypes normalizes YAML-parsed data into JSON-compatible types,
// recursing through maps and sequences.
func convertToJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, inner := range val {
			result[k] = convertToJSONTypes(inner)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, inner := range val {
			result[i] = convertToJSONTypes(inner)
		}
		return result
	default:
		return val
	}
}
