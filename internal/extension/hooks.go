// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/storeloft/storeloft/pkg/extsdk"
)

// HookName identifies a lifecycle hook.
type HookName string

// Lifecycle hooks a manifest may declare.
const (
	HookOnInit       HookName = "onInit"
	HookOnInstall    HookName = "onInstall"
	HookOnUninstall  HookName = "onUninstall"
	HookOnActivate   HookName = "onActivate"
	HookOnDeactivate HookName = "onDeactivate"
)

// HookPolicy controls what a hook failure does to the operation that
// emitted it. The state transition has already committed either way.
type HookPolicy string

const (
	// HookPolicyBestEffort logs and swallows hook failures. Default.
	HookPolicyBestEffort HookPolicy = "best_effort"
	// HookPolicyStrict propagates the first hook failure to the caller.
	HookPolicyStrict HookPolicy = "strict"
)

// HookEvent is a post-commit lifecycle event: run the named hook of the
// manifest's plugin with the given invocation context.
type HookEvent struct {
	Name     HookName
	Manifest *Manifest
	Context  *Context
}

// HookDispatcher consumes post-commit lifecycle events. It resolves the
// declared hook artifact, executes it inside the sandbox, and applies its
// own retry and failure policy — the manager never inlines hook handling.
type HookDispatcher struct {
	resolver Resolver
	sandbox  *Sandbox
	policy   HookPolicy
	attempts uint64
	backoff  time.Duration
	logger   *slog.Logger
}

// DispatcherOption configures the HookDispatcher.
type DispatcherOption func(*HookDispatcher)

// WithHookPolicy sets the failure policy.
func WithHookPolicy(p HookPolicy) DispatcherOption {
	return func(d *HookDispatcher) {
		if p != "" {
			d.policy = p
		}
	}
}

// WithHookRetry sets the per-hook attempt budget and constant backoff.
func WithHookRetry(attempts uint64, backoff time.Duration) DispatcherOption {
	return func(d *HookDispatcher) {
		if attempts > 0 {
			d.attempts = attempts
		}
		if backoff > 0 {
			d.backoff = backoff
		}
	}
}

// NewHookDispatcher creates a dispatcher with best-effort policy and three
// attempts per hook.
func NewHookDispatcher(resolver Resolver, sandbox *Sandbox, logger *slog.Logger, opts ...DispatcherOption) *HookDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &HookDispatcher{
		resolver: resolver,
		sandbox:  sandbox,
		policy:   HookPolicyBestEffort,
		attempts: 3,
		backoff:  100 * time.Millisecond,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Policy returns the dispatcher's failure policy.
func (d *HookDispatcher) Policy() HookPolicy {
	return d.policy
}

// Dispatch runs the given events in order. Events whose hook is not declared
// by the manifest are skipped. Each hook failure is counted and logged; under
// best-effort policy dispatch always returns nil, under strict policy the
// first failure is returned and remaining events are not run.
func (d *HookDispatcher) Dispatch(ctx context.Context, events ...HookEvent) error {
	for _, ev := range events {
		if ev.Manifest == nil || ev.Manifest.HookPath(ev.Name) == "" {
			continue
		}

		if err := d.run(ctx, ev); err != nil {
			recordHookFailure(ev.Name)
			d.logger.Error("lifecycle hook failed",
				"plugin", ev.Manifest.Key,
				"hook", string(ev.Name),
				"error", err)

			if d.policy == HookPolicyStrict {
				return oops.Code(CodeHookFailed).
					With("plugin", ev.Manifest.Key).
					With("hook", string(ev.Name)).
					Wrap(err)
			}
		}
	}
	return nil
}

// run executes one hook with bounded retry. Any error is retryable within
// the attempt budget; hooks are expected to be idempotent per the
// at-least-once contract.
func (d *HookDispatcher) run(ctx context.Context, ev HookEvent) error {
	path := ev.Manifest.HookPath(ev.Name)

	backoff := retry.WithMaxRetries(d.attempts-1, retry.NewConstant(d.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := ExecuteInSandbox(ctx, d.sandbox, ev.Context, func(ctx context.Context) (struct{}, error) {
			artifact, resolveErr := d.resolver.Resolve(ctx, path, ev.Context.Invocation())
			if resolveErr != nil {
				return struct{}{}, resolveErr
			}

			hook, ok := artifact.(extsdk.Hook)
			if !ok {
				return struct{}{}, oops.Code(CodeArtifactLoadFailed).
					With("path", path).
					Errorf("entry point %s is not a lifecycle hook", path)
			}

			return struct{}{}, hook(ctx, ev.Context.Invocation())
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
