// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/storeloft/storeloft/internal/extension/capability"
	"github.com/storeloft/storeloft/pkg/extsdk"
)

// resourceAllowlist is the fixed set of host endpoint families a plugin may
// ever reach, all tenant-scoped. Process-wide constant, not configurable per
// plugin; the manifest permission list can only narrow within it, never
// escalate past it.
var resourceAllowlist = []string{
	"/api/v1/catalog/",
	"/api/v1/orders/",
	"/api/v1/profile/",
}

// TransportRequest is one outbound call the scoped client delegates to the
// host transport after access validation passed.
type TransportRequest struct {
	Method    string
	Path      string
	Body      any
	TenantID  ulid.ULID
	PluginKey string
}

// Transport is the host's outbound call surface. The sandbox is the only
// component that may hand a plugin something backed by it.
type Transport interface {
	Do(ctx context.Context, req TransportRequest) (json.RawMessage, error)
}

// Sandbox mints capability-scoped API clients and wraps plugin execution so
// plugin failures cannot leak host internals.
type Sandbox struct {
	transport Transport
	enforcer  *capability.Enforcer
	logger    *slog.Logger
}

// NewSandbox creates a sandbox over the host transport. The enforcer holds
// per-plugin permission grants; a nil enforcer means allow-list-only checks.
func NewSandbox(transport Transport, enforcer *capability.Enforcer, logger *slog.Logger) *Sandbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sandbox{transport: transport, enforcer: enforcer, logger: logger}
}

// ValidateAccess reports whether the invocation may touch the resource
// path. The fixed allow-list is checked first; when the plugin has declared
// permissions registered, those must also match. Fail-closed on everything
// else.
func (s *Sandbox) ValidateAccess(resource string, c *Context) bool {
	if c == nil || resource == "" {
		return false
	}

	allowed := false
	for _, prefix := range resourceAllowlist {
		if strings.HasPrefix(resource, prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}

	if s.enforcer != nil && s.enforcer.IsRegistered(c.PluginKey) {
		return s.enforcer.Check(c.PluginKey, resource)
	}
	return true
}

// RegisterPermissions installs a plugin's declared permission grants into
// the enforcer. A manifest without permissions keeps allow-list-only
// behavior.
func (s *Sandbox) RegisterPermissions(m *Manifest) error {
	if s.enforcer == nil || m == nil || len(m.Permissions) == 0 {
		return nil
	}
	if err := s.enforcer.SetGrants(m.Key, m.Permissions); err != nil {
		return oops.Code(CodeManifestInvalid).With("plugin", m.Key).Wrap(err)
	}
	return nil
}

// RemovePermissions drops a plugin's grants, called on uninstall.
func (s *Sandbox) RemovePermissions(pluginKey string) {
	if s.enforcer != nil {
		s.enforcer.RemoveGrants(pluginKey)
	}
}

// NewScopedClient mints the API handle for one invocation. Each verb
// validates access before any transport call is attempted.
func (s *Sandbox) NewScopedClient(c *Context) extsdk.API {
	return &scopedClient{sandbox: s, inv: c}
}

// scopedClient is the only implementation of extsdk.API the runtime hands
// out. It holds the invocation context it was minted for and nothing else.
type scopedClient struct {
	sandbox *Sandbox
	inv     *Context
}

func (c *scopedClient) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.call(ctx, http.MethodGet, path, nil)
}

func (c *scopedClient) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPost, path, body)
}

func (c *scopedClient) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.call(ctx, http.MethodPut, path, body)
}

func (c *scopedClient) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.call(ctx, http.MethodDelete, path, nil)
}

func (c *scopedClient) call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if !c.sandbox.ValidateAccess(path, c.inv) {
		c.sandbox.logger.Warn("sandbox denied resource access",
			"plugin", c.inv.PluginKey,
			"resource", path,
			"method", method)
		return nil, oops.Code(CodeCapabilityDenied).
			With("plugin", c.inv.PluginKey).
			With("resource", path).
			Wrap(ErrCapabilityDenied)
	}
	return c.sandbox.transport.Do(ctx, TransportRequest{
		Method:    method,
		Path:      path,
		Body:      body,
		TenantID:  c.inv.TenantID,
		PluginKey: c.inv.PluginKey,
	})
}

// ExecuteInSandbox runs fn under the sandbox's error boundary. It fails
// fast with "invalid plugin context" when the context lacks a tenant or
// plugin key, and passes any error fn returns through IsolateError before
// propagating.
func ExecuteInSandbox[T any](ctx context.Context, s *Sandbox, c *Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if c == nil || c.TenantID.Compare(ulid.ULID{}) == 0 || c.PluginKey == "" {
		return zero, oops.Code(CodeInvalidPluginContext).Wrap(ErrInvalidContext)
	}

	result, err := fn(ctx)
	if err != nil {
		return zero, s.IsolateError(err, c.PluginKey)
	}
	return result, nil
}

// codeSentinels maps preserved semantic codes to their taxonomy sentinels
// so callers can still branch with errors.Is after isolation.
var codeSentinels = map[string]error{
	CodePluginNotFound:        ErrNotFound,
	CodeInstallationNotFound:  ErrNotFound,
	CodeAlreadyInstalled:      ErrConflict,
	CodeManifestInvalid:       ErrValidation,
	CodeSettingsInvalid:       ErrValidation,
	CodeCapabilityDenied:      ErrCapabilityDenied,
	CodeEntryPointUnsupported: ErrLoad,
	CodeInvalidPluginContext:  ErrInvalidContext,
}

// IsolateError re-presents a plugin-thrown error: the message is prefixed
// with the plugin key, stack and host internals are discarded, and a small
// whitelist of semantic codes survives so callers can branch on error kind.
func (s *Sandbox) IsolateError(err error, pluginKey string) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	code := CodeArtifactLoadFailed
	if oopsErr, ok := oops.AsOops(err); ok {
		if c, isStr := oopsErr.Code().(string); isStr {
			if _, preserved := isolatedCodes[c]; preserved {
				code = c
			}
		}
	}

	builder := oops.Code(code).With("plugin", pluginKey)
	if sentinel, ok := codeSentinels[code]; ok {
		return builder.Wrapf(sentinel, "plugin %s: %s", pluginKey, msg)
	}
	return builder.Wrapf(ErrLoad, "plugin %s: %s", pluginKey, msg)
}
