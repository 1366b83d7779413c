// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package portainer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/dockhand/lib/clock"
	"github.com/bureau-foundation/dockhand/lib/httpx"
	"github.com/bureau-foundation/dockhand/lib/secret"
)

// Client talks to a Portainer instance. Safe for concurrent use.
type Client struct {
	baseURL    string
	endpointID int
	username   string
	password   *secret.Buffer
	httpClient *http.Client
	clock      clock.Clock
	logger     *slog.Logger

	// sources is the ordered token resolution chain: durable store,
	// then the last refresh result, then the static fallback.
	sources     []TokenSource
	memory      *memorySource
	storeSource *StoreSource

	// refreshMu guards flight. The flight itself is never mutated
	// after close(done), so waiters read it lock-free.
	refreshMu sync.Mutex
	flight    *refreshFlight
}

// refreshFlight is one in-flight authentication shared by every
// caller that needs a token while it runs.
type refreshFlight struct {
	done  chan struct{}
	token *Token
	err   error
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// BaseURL is the Portainer root, e.g. "https://portainer.lan:9443".
	// Required; a trailing slash is trimmed.
	BaseURL string

	// EndpointID selects the Docker environment within Portainer.
	// Required; the local environment is 1 on a default install.
	EndpointID int

	// Username and Password are the credentials used to mint tokens.
	// Optional: without them the client can still run on a stored or
	// static token, but cannot recover from a 401. The client borrows
	// the password buffer; the owner closes it.
	Username string
	Password *secret.Buffer

	// StaticToken is an environment-provided fallback token tried
	// after every other tier. Optional.
	StaticToken string

	// Store is the durable sealed token store. Optional.
	Store *TokenStore

	// HTTPClient defaults to a client with a 10s total timeout. The
	// Portainer API answers from local state; anything slower than
	// that is an outage, not a slow query.
	HTTPClient *http.Client

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// NewClient creates a Portainer client.
func NewClient(options ClientOptions) (*Client, error) {
	if options.BaseURL == "" {
		return nil, &ConfigError{Missing: "Portainer URL"}
	}
	if options.EndpointID < 1 {
		return nil, &ConfigError{Missing: "Portainer endpoint ID"}
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	client := &Client{
		baseURL:    strings.TrimRight(options.BaseURL, "/"),
		endpointID: options.EndpointID,
		username:   options.Username,
		password:   options.Password,
		httpClient: httpClient,
		clock:      clk,
		logger:     logger,
		memory:     &memorySource{},
	}

	if options.Store != nil {
		client.storeSource = NewStoreSource(options.Store, clk)
		client.sources = append(client.sources, client.storeSource)
	}
	client.sources = append(client.sources, client.memory)
	if options.StaticToken != "" {
		client.sources = append(client.sources, NewStaticSource(options.StaticToken))
	}

	return client, nil
}

// canRefresh reports whether credentials for minting a token exist.
func (c *Client) canRefresh() bool {
	return c.username != "" && c.password != nil
}

// currentToken walks the source chain and returns the first live
// token. Expired tokens are skipped, not errors: a later tier may
// still hold a usable one.
func (c *Client) currentToken(ctx context.Context) (*Token, error) {
	now := c.clock.Now()
	for _, source := range c.sources {
		token, err := source.Token(ctx)
		if err != nil {
			return nil, err
		}
		if token == nil || token.Value == "" || token.Expired(now) {
			continue
		}
		return token, nil
	}
	return nil, ErrNoTokenAvailable
}

// refresh mints a fresh token, single-flight: the first caller
// authenticates upstream and every concurrent caller waits for that
// one result instead of issuing its own authentication call.
func (c *Client) refresh(ctx context.Context) (*Token, error) {
	c.refreshMu.Lock()
	if flight := c.flight; flight != nil {
		c.refreshMu.Unlock()
		select {
		case <-flight.done:
			return flight.token, flight.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	flight := &refreshFlight{done: make(chan struct{})}
	c.flight = flight
	c.refreshMu.Unlock()

	flight.token, flight.err = c.authenticate(ctx)

	c.refreshMu.Lock()
	c.flight = nil
	c.refreshMu.Unlock()
	close(flight.done)

	return flight.token, flight.err
}

// authenticate performs the upstream credential exchange and installs
// the minted token in the in-memory tier and (best-effort) the
// durable store.
func (c *Client) authenticate(ctx context.Context) (*Token, error) {
	if !c.canRefresh() {
		return nil, &ConfigError{Missing: "Portainer credentials (username and password)"}
	}

	credentials := map[string]string{
		"username": c.username,
		"password": c.password.String(),
	}
	status, body, err := c.do(ctx, http.MethodPost, "/api/auth", nil, credentials, "")
	if err != nil {
		return nil, fmt.Errorf("portainer: authentication request: %w", err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, &AuthError{StatusCode: status, Message: apiMessage(body)}
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status, Message: apiMessage(body)}
	}

	var auth struct {
		JWT string `json:"jwt"`
	}
	if err := json.Unmarshal(body, &auth); err != nil || auth.JWT == "" {
		return nil, fmt.Errorf("portainer: authentication response carries no jwt field")
	}

	now := c.clock.Now()
	token := &Token{
		Value:     auth.JWT,
		FetchedAt: now,
		ExpiresAt: tokenExpiry(auth.JWT, now),
	}

	c.memory.set(token)
	if c.storeSource != nil {
		c.storeSource.put(token)
	}
	c.logger.Info("minted fresh portainer token", "expires_at", token.ExpiresAt)

	return token, nil
}

// request performs an authenticated API call and decodes the JSON
// response into out (skipped when out is nil).
func (c *Client) request(ctx context.Context, method, path string, query url.Values, requestBody, out any) error {
	body, err := c.requestRaw(ctx, method, path, query, requestBody)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("portainer: decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// requestRaw performs an authenticated API call and returns the raw
// response body. On a 401 the cached token is dropped, one refresh is
// performed, and the call is retried exactly once; a second 401 is a
// terminal *AuthError. Never more than one retry.
func (c *Client) requestRaw(ctx context.Context, method, path string, query url.Values, requestBody any) ([]byte, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoTokenAvailable) || !c.canRefresh() {
			return nil, err
		}
		token, err = c.refresh(ctx)
		if err != nil {
			return nil, err
		}
	}

	status, body, err := c.do(ctx, method, path, query, requestBody, token.Value)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		c.logger.Info("portainer rejected the cached token, refreshing", "path", path)
		c.memory.clear()
		if c.storeSource != nil {
			c.storeSource.dropCache()
		}

		token, err = c.refresh(ctx)
		if err != nil {
			return nil, err
		}
		status, body, err = c.do(ctx, method, path, query, requestBody, token.Value)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, &AuthError{StatusCode: status, Message: apiMessage(body)}
		}
	}

	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status, Message: apiMessage(body)}
	}
	return body, nil
}

// do issues one HTTP call. token "" sends no Authorization header.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, requestBody any, token string) (int, []byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return 0, nil, fmt.Errorf("portainer: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("portainer: creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return 0, nil, fmt.Errorf("portainer: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	body, err := httpx.ReadBody(response.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("portainer: reading %s %s response: %w", method, path, err)
	}
	return response.StatusCode, body, nil
}

// apiMessage extracts Portainer's {message, details} error envelope,
// falling back to the raw body.
func apiMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		if envelope.Details != "" && envelope.Details != envelope.Message {
			return envelope.Message + ": " + envelope.Details
		}
		return envelope.Message
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return "(empty response body)"
	}
	if len(text) > 512 {
		text = text[:512]
	}
	return text
}

// dockerPath builds a Docker-proxy API path for the configured
// endpoint, e.g. dockerPath("/containers/json").
func (c *Client) dockerPath(suffix string) string {
	return fmt.Sprintf("/api/endpoints/%d/docker%s", c.endpointID, suffix)
}
