// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"
)

// TenantHeader carries the tenant identity on host API calls.
const TenantHeader = "X-Storeloft-Tenant"

// pluginHeader attributes an outbound call to the plugin it ran for, so the
// host can audit and rate-limit per plugin.
const pluginHeader = "X-Storeloft-Plugin"

// HTTPTransport delegates scoped client calls to the host platform's
// internal API over HTTP. Access validation has already happened by the
// time a request reaches the transport.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport creates a transport rooted at the host API base URL.
// A nil client gets a default with a conservative timeout.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Do executes one host API call on behalf of a plugin invocation.
func (t *HTTPTransport) Do(ctx context.Context, req TransportRequest) (json.RawMessage, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, oops.With("operation", "encode request body").With("path", req.Path).Wrap(err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.baseURL+req.Path, bodyReader)
	if err != nil {
		return nil, oops.With("operation", "build request").With("path", req.Path).Wrap(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(TenantHeader, req.TenantID.String())
	httpReq.Header.Set(pluginHeader, req.PluginKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, oops.With("operation", "host api call").With("path", req.Path).Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read side close

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, oops.With("operation", "read response").With("path", req.Path).Wrap(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, oops.
			With("path", req.Path).
			With("status", resp.StatusCode).
			Errorf("host api returned status %d", resp.StatusCode)
	}

	return payload, nil
}

var _ Transport = (*HTTPTransport)(nil)
