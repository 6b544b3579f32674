// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import (
	"context"

	"github.com/samber/oops"

	"github.com/storeloft/storeloft/pkg/extsdk"
)

// RenderResult is the outcome of rendering a widget or settings panel.
// Failures are structured, never errors, matching the load contract.
type RenderResult struct {
	Success bool
	Cached  bool
	HTML    string
	Err     error
}

// RenderWidget loads a plugin's storefront widget and renders it inside the
// sandbox. A load or render failure yields a failed result so the rest of
// the page is unaffected.
func (l *Loader) RenderWidget(ctx context.Context, req LoadRequest) RenderResult {
	return l.render(ctx, req, EntryPublicWidget)
}

// RenderSettingsPanel loads a plugin's dashboard settings panel and renders
// it inside the sandbox.
func (l *Loader) RenderSettingsPanel(ctx context.Context, req LoadRequest) RenderResult {
	return l.render(ctx, req, EntryDashboardSettings)
}

func (l *Loader) render(ctx context.Context, req LoadRequest, ep EntryPoint) RenderResult {
	res := l.load(ctx, req, ep)
	if !res.Success {
		return RenderResult{Err: res.Err}
	}

	html, err := ExecuteInSandbox(ctx, l.sandbox, res.Context, func(ctx context.Context) (string, error) {
		switch artifact := res.Artifact.(type) {
		case extsdk.Widget:
			return artifact.RenderWidget(ctx, res.Context.Invocation())
		case extsdk.SettingsPanel:
			return artifact.RenderSettings(ctx, res.Context.Invocation())
		default:
			return "", oops.Code(CodeArtifactLoadFailed).
				With("plugin", req.PluginKey).
				Wrapf(ErrLoad, "artifact for %s is not renderable", req.PluginKey)
		}
	})
	if err != nil {
		l.logger.Warn("extension render failed",
			"plugin", req.PluginKey,
			"entry_point", string(ep),
			"error", err)
		return RenderResult{Err: err}
	}
	return RenderResult{Success: true, Cached: res.Cached, HTML: html}
}

// InvokeHandler loads a plugin's backend handler and executes one request
// inside the sandbox. Unlike the render paths, failures are errors; the
// invoking client gets the mapped status.
func (l *Loader) InvokeHandler(ctx context.Context, req LoadRequest, call extsdk.Request) (*extsdk.Response, error) {
	handler, invCtx, err := l.LoadBackendHandler(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := ExecuteInSandbox(ctx, l.sandbox, invCtx, func(ctx context.Context) (*extsdk.Response, error) {
		return handler.Handle(ctx, invCtx.Invocation(), call)
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, l.sandbox.IsolateError(oops.Code(CodeArtifactLoadFailed).
			Wrapf(ErrLoad, "handler for %s returned no response", req.PluginKey), req.PluginKey)
	}
	return resp, nil
}
