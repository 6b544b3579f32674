// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

// Package extsdk defines the contracts a Storeloft plugin implements and the
// restricted host surface it is handed at invocation time. Plugin authors
// import only this package; the runtime lives under internal and is not
// visible to plugins.
package extsdk

import (
	"context"
	"encoding/json"
)

// API is the capability-scoped host client minted by the sandbox for one
// invocation. Every call is checked against the host endpoint allow-list and
// the plugin's declared permissions before any transport activity happens.
type API interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	Put(ctx context.Context, path string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, path string) (json.RawMessage, error)
}

// Invocation carries everything a plugin may know about the call it is
// serving. It is constructed per invocation and must not be retained or
// shared across invocations.
type Invocation struct {
	TenantID       string
	ProfileID      string
	InstallationID string
	PluginKey      string

	// Settings is a snapshot of the installation's configuration at the
	// time the invocation was built.
	Settings map[string]any

	API API
}

// Artifact is any resolved extension-point implementation. The loader
// type-asserts it against Widget, SettingsPanel, Handler or Hook depending
// on the entry point being served.
type Artifact any

// Widget renders a public storefront fragment. A widget must tolerate empty
// settings and must never assume host internals beyond the API handle.
type Widget interface {
	RenderWidget(ctx context.Context, inv *Invocation) (string, error)
}

// SettingsPanel renders the dashboard configuration surface for a plugin.
type SettingsPanel interface {
	RenderSettings(ctx context.Context, inv *Invocation) (string, error)
}

// Request is the payload delivered to a backend handler.
type Request struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Response is what a backend handler returns to the host.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// Handler processes backend invocations on behalf of a tenant.
type Handler interface {
	Handle(ctx context.Context, inv *Invocation, req Request) (*Response, error)
}

// Hook is a lifecycle callback (onInit, onInstall, onUninstall, onActivate,
// onDeactivate). Hooks run best-effort after the owning state transition has
// committed; returning an error never rolls the transition back.
type Hook func(ctx context.Context, inv *Invocation) error
