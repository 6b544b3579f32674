// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import (
	"sync"
	"time"

	"github.com/storeloft/storeloft/pkg/extsdk"
)

// SettingsKey derives the registry key for a plugin's settings-panel
// artifact so it never collides with the widget/handler artifact cached
// under the plugin key itself.
func SettingsKey(pluginKey string) string {
	return pluginKey + "_settings"
}

// registryEntry is one cached plugin record. Entries are replaced wholesale
// on write, never mutated in place, which keeps concurrent readers safe
// under last-writer-wins semantics.
type registryEntry struct {
	manifest *Manifest
	artifact extsdk.Artifact
	loadErr  error
	loadedAt time.Time
}

// Registry is the process-wide, tenant-agnostic cache of manifests and
// resolved artifacts keyed by plugin key. It is read by many concurrent
// requests and written rarely (install, uninstall, catalog change); there is
// no TTL — invalidation is always explicit.
//
// The zero value is not ready to use; construct with NewRegistry so tests
// can hold isolated instances instead of sharing a package singleton.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// RegisterManifest upserts the manifest-only entry for a key. Idempotent; a
// previously cached artifact for the same key is preserved.
func (r *Registry) RegisterManifest(key string, m *Manifest) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[key]; ok {
		r.entries[key] = &registryEntry{
			manifest: m,
			artifact: existing.artifact,
			loadErr:  existing.loadErr,
			loadedAt: existing.loadedAt,
		}
		return
	}
	r.entries[key] = &registryEntry{manifest: m}
}

// Manifest returns the registered manifest for a key, or nil.
func (r *Registry) Manifest(key string) *Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[key]; ok {
		return e.manifest
	}
	return nil
}

// IsCached reports whether a usable artifact is cached for the key: an
// artifact is present and no load error has been recorded since.
func (r *Registry) IsCached(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	return ok && e.artifact != nil && e.loadErr == nil
}

// Cached returns the cached artifact for the key, or nil when absent or
// poisoned by a recorded load error.
func (r *Registry) Cached(key string) extsdk.Artifact {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	if !ok || e.loadErr != nil {
		return nil
	}
	return e.artifact
}

// CacheArtifact stores a freshly resolved artifact, clearing any previously
// recorded load error.
func (r *Registry) CacheArtifact(key string, artifact extsdk.Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var manifest *Manifest
	if existing, ok := r.entries[key]; ok {
		manifest = existing.manifest
	}
	r.entries[key] = &registryEntry{
		manifest: manifest,
		artifact: artifact,
		loadedAt: time.Now(),
	}
}

// MarkError records a load failure against the entry so diagnostics can
// surface it. It never panics or throws; marking an unknown key creates the
// entry.
func (r *Registry) MarkError(key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var manifest *Manifest
	if existing, ok := r.entries[key]; ok {
		manifest = existing.manifest
	}
	r.entries[key] = &registryEntry{
		manifest: manifest,
		loadErr:  err,
		loadedAt: time.Now(),
	}
}

// LoadError returns the recorded load failure for a key, or nil.
func (r *Registry) LoadError(key string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[key]; ok {
		return e.loadErr
	}
	return nil
}

// LoadedAt returns when the entry was last written, or the zero time when
// the key is unknown.
func (r *Registry) LoadedAt(key string) time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[key]; ok {
		return e.loadedAt
	}
	return time.Time{}
}

// Clear fully evicts one entry.
func (r *Registry) Clear(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// ClearPlugin evicts a plugin's entry and its derived settings entry.
// Called on uninstall and whenever the catalog manifest changes.
func (r *Registry) ClearPlugin(pluginKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, pluginKey)
	delete(r.entries, SettingsKey(pluginKey))
}

// Keys returns all cached keys. Order is not guaranteed.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	return keys
}
