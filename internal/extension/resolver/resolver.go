// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

// Package resolver provides the compiled-in artifact resolver. Plugins built
// into the binary register a factory per entry-point path at startup; the
// loader resolves paths against that table at invocation time.
package resolver

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/storeloft/storeloft/internal/extension"
	"github.com/storeloft/storeloft/pkg/extsdk"
)

// Factory builds an artifact for one invocation. Factories are invoked
// inside the sandbox; returning an error fails the load for that plugin
// only.
type Factory func(ctx context.Context, inv *extsdk.Invocation) (extsdk.Artifact, error)

// Static resolves entry-point paths against a process-local factory table.
type Static struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewStatic creates an empty resolver.
func NewStatic() *Static {
	return &Static{factories: make(map[string]Factory)}
}

// Register binds a factory to an entry-point path. Re-registering a path
// replaces the previous factory.
func (s *Static) Register(path string, f Factory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[path] = f
}

// RegisterArtifact binds a fixed artifact to a path, for artifacts that
// carry no per-invocation state.
func (s *Static) RegisterArtifact(path string, artifact extsdk.Artifact) {
	s.Register(path, func(context.Context, *extsdk.Invocation) (extsdk.Artifact, error) {
		return artifact, nil
	})
}

// Paths returns the registered entry-point paths.
func (s *Static) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.factories))
	for p := range s.factories {
		paths = append(paths, p)
	}
	return paths
}

// Resolve builds the artifact registered for path.
func (s *Static) Resolve(ctx context.Context, path string, inv *extsdk.Invocation) (extsdk.Artifact, error) {
	s.mu.RLock()
	factory, ok := s.factories[path]
	s.mu.RUnlock()

	if !ok {
		return nil, oops.Code(extension.CodeArtifactLoadFailed).
			With("path", path).
			Wrapf(extension.ErrLoad, "no artifact registered for %s", path)
	}
	return factory(ctx, inv)
}

var _ extension.Resolver = (*Static)(nil)
