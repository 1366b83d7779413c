// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bureau-foundation/dockhand/lib/httpx"
	"github.com/bureau-foundation/dockhand/lib/secret"
)

// Client is the typed HTTP client for the gateway API, used by the
// console service and the CLI. Safe for concurrent use.
type Client struct {
	baseURL    string
	token      *secret.Buffer
	httpClient *http.Client
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// BaseURL is the gateway root, e.g. "http://127.0.0.1:9500".
	// Required; a trailing slash is trimmed.
	BaseURL string

	// Token is the shared bearer token. Required. The client borrows
	// the buffer; the owner closes it.
	Token *secret.Buffer

	// HTTPClient defaults to a client with a 90s total timeout,
	// comfortably above the gateway's 60s subprocess ceiling so slow
	// operations fail server-side first with a useful result.
	HTTPClient *http.Client
}

// NewClient creates a gateway client.
func NewClient(options ClientOptions) (*Client, error) {
	if options.BaseURL == "" {
		return nil, fmt.Errorf("gateway client: base URL is required")
	}
	if options.Token == nil {
		return nil, fmt.Errorf("gateway client: token is required")
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &Client{
		baseURL:    trimTrailingSlash(options.BaseURL),
		token:      options.Token,
		httpClient: httpClient,
	}, nil
}

func trimTrailingSlash(url string) string {
	for len(url) > 0 && url[len(url)-1] == '/' {
		url = url[:len(url)-1]
	}
	return url
}

// Health checks liveness. Token-exempt on the server; the client
// sends the token anyway, which the server ignores.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Status reports version, uptime, and allowlist counts.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var status StatusResponse
	if err := c.doRequest(ctx, http.MethodGet, "/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Allowlist fetches the current allowlist.
func (c *Client) Allowlist(ctx context.Context) (*Allowlist, error) {
	var allowlist Allowlist
	if err := c.doRequest(ctx, http.MethodGet, "/allowlist", nil, &allowlist); err != nil {
		return nil, err
	}
	return &allowlist, nil
}

// ReplaceAllowlist installs a new allowlist wholesale and returns the
// normalized document the gateway persisted.
func (c *Client) ReplaceAllowlist(ctx context.Context, allowlist *Allowlist) (*Allowlist, error) {
	var saved Allowlist
	if err := c.doRequest(ctx, http.MethodPut, "/allowlist", allowlist, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// Execute dispatches a named operation. A result with Success=false
// is returned without error: the request was valid, the command
// failed. Validation rejections surface as *APIError.
func (c *Client) Execute(ctx context.Context, request *OperationRequest) (*ExecutionResult, error) {
	var result ExecutionResult
	if err := c.doRequest(ctx, http.MethodPost, "/execute", request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Shell runs a raw command on the gateway host. Blocked commands
// surface as *APIError with status 403.
func (c *Client) Shell(ctx context.Context, command, cwd string) (*ShellResult, error) {
	var result ShellResult
	request := ShellRequest{Command: command, Cwd: cwd}
	if err := c.doRequest(ctx, http.MethodPost, "/shell", request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// doRequest performs one API call: JSON request body (when non-nil),
// bearer token, bounded response read, JSON decode into out (when
// non-nil). Non-2xx responses decode the gateway's {error} envelope
// into an *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody, out any) error {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("gateway client: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("gateway client: creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Authorization", "Bearer "+c.token.String())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("gateway client: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &APIError{
			StatusCode: response.StatusCode,
			Message:    decodeErrorMessage(response.Body),
		}
	}

	if out == nil {
		return nil
	}
	if err := httpx.DecodeJSON(response.Body, out); err != nil {
		return fmt.Errorf("gateway client: decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeErrorMessage extracts the {error} envelope, falling back to
// the raw body for non-JSON responses (proxies, panics).
func decodeErrorMessage(body io.Reader) string {
	raw := httpx.ErrorBody(body)
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	return raw
}
