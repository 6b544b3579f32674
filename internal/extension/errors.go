// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import "errors"

// Sentinel errors for the runtime's error taxonomy. Callers branch with
// errors.Is; oops codes carry the same classification across process
// boundaries.
var (
	// ErrNotFound covers unknown plugins, unknown installations, and
	// tenant mismatches. A foreign tenant's installation id is reported
	// as not-found, never as forbidden, so existence does not leak.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an installation already exists for a
	// (tenant, plugin) pair.
	ErrConflict = errors.New("already installed")

	// ErrValidation covers rejected manifests and rejected settings
	// payloads. Always surfaced with field-level detail, never retried.
	ErrValidation = errors.New("validation failed")

	// ErrCapabilityDenied is returned when the sandbox refuses a resource
	// access. Fail-closed, never retried.
	ErrCapabilityDenied = errors.New("capability denied")

	// ErrLoad is returned when artifact resolution fails.
	ErrLoad = errors.New("artifact load failed")

	// ErrInvalidContext is returned when a sandbox execution is attempted
	// without a complete plugin context.
	ErrInvalidContext = errors.New("invalid plugin context")
)

// oops error codes used across the runtime.
const (
	CodePluginNotFound          = "PLUGIN_NOT_FOUND"
	CodeInstallationNotFound    = "INSTALLATION_NOT_FOUND"
	CodeProfileNotFound         = "PROFILE_NOT_FOUND"
	CodeAlreadyInstalled        = "PLUGIN_ALREADY_INSTALLED"
	CodeManifestInvalid         = "MANIFEST_INVALID"
	CodeSettingsInvalid         = "SETTINGS_INVALID"
	CodeCapabilityDenied        = "CAPABILITY_DENIED"
	CodeInvalidPluginContext    = "INVALID_PLUGIN_CONTEXT"
	CodeArtifactLoadFailed      = "ARTIFACT_LOAD_FAILED"
	CodeEntryPointUnsupported   = "ENTRY_POINT_UNSUPPORTED"
	CodeHookFailed              = "HOOK_FAILED"
	CodeSettingsPersistFailed   = "SETTINGS_PERSIST_FAILED"
	CodeInstallFailed           = "INSTALL_FAILED"
	CodeUninstallFailed         = "UNINSTALL_FAILED"
	CodeActivationFailed        = "ACTIVATION_FAILED"
	CodeDeactivationFailed      = "DEACTIVATION_FAILED"
	CodeListInstallationsFailed = "LIST_INSTALLATIONS_FAILED"
)

// isolatedCodes is the whitelist of semantic error codes preserved by the
// sandbox's error isolation. Everything else is flattened so host internals
// never reach plugin-authored error surfaces.
var isolatedCodes = map[string]struct{}{
	CodePluginNotFound:        {},
	CodeInstallationNotFound:  {},
	CodeAlreadyInstalled:      {},
	CodeManifestInvalid:       {},
	CodeSettingsInvalid:       {},
	CodeCapabilityDenied:      {},
	CodeEntryPointUnsupported: {},
	CodeInvalidPluginContext:  {},
}
