// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

// Package loyaltypoints is the bundled loyalty points plugin. It awards
// points per purchase and shows a balance widget on the storefront.
package loyaltypoints

import (
	"context"
	_ "embed"
	"fmt"
	"html"

	"github.com/samber/oops"

	"github.com/storeloft/storeloft/internal/extension/resolver"
	"github.com/storeloft/storeloft/pkg/extsdk"
)

//go:embed plugin.yaml
var ManifestYAML []byte

// Register binds the plugin's artifacts to the entry-point paths its
// manifest declares.
func Register(r *resolver.Static) {
	r.RegisterArtifact("loyalty/widget", widget{})
	r.RegisterArtifact("loyalty/settings", settingsPanel{})
	r.RegisterArtifact("loyalty/handler", handler{})
	r.RegisterArtifact("loyalty/hooks/init", extsdk.Hook(onInit))
	r.RegisterArtifact("loyalty/hooks/install", extsdk.Hook(onInstall))
	r.RegisterArtifact("loyalty/hooks/uninstall", extsdk.Hook(onUninstall))
}

type widget struct{}

// RenderWidget shows the shopper-facing points banner.
func (widget) RenderWidget(_ context.Context, inv *extsdk.Invocation) (string, error) {
	message := "Earn points with every purchase!"
	if m, ok := inv.Settings["welcome_message"].(string); ok && m != "" {
		message = m
	}
	return fmt.Sprintf(`<div class="loyalty-widget"><p>%s</p></div>`, html.EscapeString(message)), nil
}

type settingsPanel struct{}

// RenderSettings shows the merchant configuration form.
func (settingsPanel) RenderSettings(_ context.Context, inv *extsdk.Invocation) (string, error) {
	points := float64(10)
	if p, ok := inv.Settings["points_per_purchase"].(float64); ok {
		points = p
	}
	return fmt.Sprintf(
		`<form class="loyalty-settings"><label>Points per purchase</label><input name="points_per_purchase" type="number" value="%g"></form>`,
		points), nil
}

type handler struct{}

// Handle serves storefront actions. The balance action reads the shopper's
// order history through the scoped client; any path outside the plugin's
// declared permissions is denied by the sandbox.
func (handler) Handle(ctx context.Context, inv *extsdk.Invocation, req extsdk.Request) (*extsdk.Response, error) {
	switch req.Action {
	case "balance":
		orders, err := inv.API.Get(ctx, "/api/v1/orders/count")
		if err != nil {
			return nil, oops.With("action", req.Action).Wrap(err)
		}
		return &extsdk.Response{Status: "ok", Data: map[string]any{"orders": string(orders)}}, nil
	default:
		return &extsdk.Response{Status: "error", Data: map[string]any{"reason": "unknown action"}}, nil
	}
}

func onInit(_ context.Context, _ *extsdk.Invocation) error {
	return nil
}

func onInstall(ctx context.Context, inv *extsdk.Invocation) error {
	// Idempotent: the host retries hooks at least once on failure.
	_, err := inv.API.Post(ctx, "/api/v1/profile/loyalty-accounts", map[string]any{
		"tenant": inv.TenantID,
	})
	return err
}

func onUninstall(ctx context.Context, inv *extsdk.Invocation) error {
	_, err := inv.API.Delete(ctx, "/api/v1/profile/loyalty-accounts")
	return err
}
