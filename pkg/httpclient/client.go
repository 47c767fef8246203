// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpclient provides a small functional-options HTTP client used
// by the LLM gateway's backends to reach local and cloud endpoints.
package httpclient

import (
	"crypto/tls"
	"net/http"
	"time"
)

// Client wraps *http.Client with sane defaults for LLM backend calls.
type Client struct {
	HTTP *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the client's overall request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTP.Timeout = d }
}

// WithTLSConfig sets a custom TLS config on the client's transport. Apply
// this after WithHTTPClient if both are used, since WithHTTPClient
// replaces the whole client, transport included.
func WithTLSConfig(tlsCfg *tls.Config) Option {
	return func(c *Client) {
		transport, ok := c.HTTP.Transport.(*http.Transport)
		if !ok || transport == nil {
			transport = http.DefaultTransport.(*http.Transport).Clone()
		}
		transport.TLSClientConfig = tlsCfg
		c.HTTP.Transport = transport
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.HTTP = h }
}

// New creates a Client with the given options applied over a default
// 120s-timeout base client.
func New(opts...Option) *Client {
	c := &Client{HTTP: &http.Client{Timeout: 120 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
