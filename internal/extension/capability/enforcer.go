// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

// Package capability provides runtime permission enforcement for installed
// plugins.
//
// Pattern matching uses gobwas/glob with '/' as the segment separator:
//   - '*' matches a single path segment (does not cross '/')
//   - '**' matches zero or more segments (crosses '/')
//
// Examples:
//   - "/api/v1/orders/*" matches "/api/v1/orders/recent" but NOT
//     "/api/v1/orders/recent/items"
//   - "/api/v1/orders/**" matches both
package capability

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gobwas/glob"
)

// compiledGrant pairs a declared permission pattern with its compiled glob.
type compiledGrant struct {
	pattern string
	glob    glob.Glob
}

// Enforcer checks plugin permissions at runtime. Grants come from the
// manifest's declared permission list, set when the plugin is registered.
//
// Enforcer is safe for concurrent use. The zero value is ready to use.
type Enforcer struct {
	grants map[string][]compiledGrant // plugin key -> compiled grants
	mu     sync.RWMutex
}

// NewEnforcer creates a permission enforcer.
func NewEnforcer() *Enforcer {
	return &Enforcer{grants: make(map[string][]compiledGrant)}
}

// SetGrants configures the permission patterns for a plugin, replacing any
// previous grants. All patterns are compiled before state changes, so a
// validation failure leaves the enforcer untouched (all-or-nothing).
func (e *Enforcer) SetGrants(pluginKey string, permissions []string) error {
	if pluginKey == "" {
		return errors.New("plugin key cannot be empty")
	}

	compiled := make([]compiledGrant, len(permissions))
	for i, pattern := range permissions {
		if pattern == "" {
			return fmt.Errorf("permission %d: empty pattern", i)
		}
		// Compile with '/' as separator so '*' stays inside one path segment.
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return fmt.Errorf("permission %d (%q): %w", i, pattern, err)
		}
		compiled[i] = compiledGrant{pattern: pattern, glob: g}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.grants == nil {
		e.grants = make(map[string][]compiledGrant)
	}
	e.grants[pluginKey] = compiled
	return nil
}

// IsRegistered reports whether the plugin has grants configured. This
// distinguishes "plugin not registered" from "plugin declared an empty
// permission list".
func (e *Enforcer) IsRegistered(pluginKey string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.grants == nil {
		return false
	}
	_, ok := e.grants[pluginKey]
	return ok
}

// RemoveGrants unregisters a plugin. Safe for unknown plugins and the zero
// value.
func (e *Enforcer) RemoveGrants(pluginKey string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.grants == nil {
		return
	}
	delete(e.grants, pluginKey)
}

// Grants returns a defensive copy of the patterns granted to a plugin, or
// nil when the plugin is not registered.
func (e *Enforcer) Grants(pluginKey string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.grants == nil {
		return nil
	}
	grants, ok := e.grants[pluginKey]
	if !ok {
		return nil
	}
	patterns := make([]string, len(grants))
	for i, g := range grants {
		patterns[i] = g.pattern
	}
	return patterns
}

// Check reports whether the plugin's grants match the resource path.
// Deny by default: empty plugin key, empty resource, or an unregistered
// plugin all return false without error.
func (e *Enforcer) Check(pluginKey, resource string) bool {
	if resource == "" {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.grants == nil {
		return false
	}
	grants, ok := e.grants[pluginKey]
	if !ok {
		return false
	}
	for _, grant := range grants {
		if grant.glob.Match(resource) {
			return true
		}
	}
	return false
}
