// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import (
	"github.com/oklog/ulid/v2"

	"github.com/storeloft/storeloft/pkg/extsdk"
)

// Context is the per-invocation execution context handed to a plugin
// artifact. It is owned exclusively by the call that created it and must
// never be cached or shared across invocations.
type Context struct {
	TenantID       ulid.ULID
	ProfileID      ulid.ULID
	InstallationID ulid.ULID
	PluginKey      string

	// Settings is the installation's configuration snapshot taken when
	// the context was built.
	Settings map[string]any

	// API is the sandbox-minted capability-scoped client.
	API extsdk.API
}

// Invocation converts the context into the SDK-facing form passed to plugin
// artifacts. Identifier fields are stringified; zero ULIDs become empty
// strings so plugins cannot mistake an absent id for a real one.
func (c *Context) Invocation() *extsdk.Invocation {
	return &extsdk.Invocation{
		TenantID:       ulidString(c.TenantID),
		ProfileID:      ulidString(c.ProfileID),
		InstallationID: ulidString(c.InstallationID),
		PluginKey:      c.PluginKey,
		Settings:       c.Settings,
		API:            c.API,
	}
}

func ulidString(id ulid.ULID) string {
	if id.Compare(ulid.ULID{}) == 0 {
		return ""
	}
	return id.String()
}
