// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/dockhand/lib/httpx"
	"github.com/bureau-foundation/dockhand/lib/secret"
	"github.com/bureau-foundation/dockhand/logarchive"
	"github.com/bureau-foundation/dockhand/portainer"
)

// Client is the typed HTTP client for the console API, used by the
// CLI. Safe for concurrent use.
type Client struct {
	baseURL string
	token   *secret.Buffer

	// httpClient serves the request/response endpoints with a total
	// timeout. streamClient shares its transport but has no total
	// timeout: SSE sessions legitimately run for minutes and are
	// bounded by the request context instead.
	httpClient   *http.Client
	streamClient *http.Client
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// BaseURL is the console root, e.g. "http://127.0.0.1:9600".
	// Required; a trailing slash is trimmed.
	BaseURL string

	// Token is the console bearer token. Required. The client borrows
	// the buffer; the owner closes it.
	Token *secret.Buffer

	// HTTPClient defaults to a client with a 30s total timeout.
	HTTPClient *http.Client
}

// NewClient creates a console client.
func NewClient(options ClientOptions) (*Client, error) {
	if options.BaseURL == "" {
		return nil, fmt.Errorf("console client: base URL is required")
	}
	if options.Token == nil {
		return nil, fmt.Errorf("console client: token is required")
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:      strings.TrimRight(options.BaseURL, "/"),
		token:        options.Token,
		httpClient:   httpClient,
		streamClient: &http.Client{Transport: httpClient.Transport},
	}, nil
}

// APIError is returned by Client methods when the console responds
// with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("console returned %d: %s", e.StatusCode, e.Message)
}

// Health checks liveness. Token-exempt on the server.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Containers lists the containers of the configured endpoint.
func (c *Client) Containers(ctx context.Context) ([]ContainerView, error) {
	var containers []ContainerView
	if err := c.doRequest(ctx, http.MethodGet, "/containers", nil, &containers); err != nil {
		return nil, err
	}
	return containers, nil
}

// ContainerAction applies a lifecycle verb to a container. A result
// with Success=false is returned without error: the request was
// valid, the action failed upstream.
func (c *Client) ContainerAction(ctx context.Context, containerID string, action portainer.Action) (*portainer.ActionResult, error) {
	if containerID == "" {
		return nil, fmt.Errorf("console client: container ID is required")
	}
	path := "/containers/" + url.PathEscape(containerID) + "/" + url.PathEscape(string(action))
	var result portainer.ActionResult
	if err := c.doRequest(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ContainerStats fetches a one-shot resource snapshot for a container.
func (c *Client) ContainerStats(ctx context.Context, containerID string) (*portainer.Stats, error) {
	if containerID == "" {
		return nil, fmt.Errorf("console client: container ID is required")
	}
	var stats portainer.Stats
	path := "/containers/" + url.PathEscape(containerID) + "/stats"
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ContainerLogs fetches the last tail lines of a container's logs.
// A tail of zero requests the server default.
func (c *Client) ContainerLogs(ctx context.Context, containerID string, tail int) (*portainer.ContainerLogs, error) {
	if containerID == "" {
		return nil, fmt.Errorf("console client: container ID is required")
	}
	path := "/containers/" + url.PathEscape(containerID) + "/logs"
	if tail > 0 {
		path += "?tail=" + strconv.Itoa(tail)
	}
	var logs portainer.ContainerLogs
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &logs); err != nil {
		return nil, err
	}
	return &logs, nil
}

// Archives lists archived deploy logs, newest first. A limit of zero
// requests the server default.
func (c *Client) Archives(ctx context.Context, limit int) ([]logarchive.ArchiveRecord, error) {
	path := "/archives"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var response ArchiveListResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}
	return response.Archives, nil
}

// Archive fetches one archived deploy log by digest, metadata and
// plaintext content.
func (c *Client) Archive(ctx context.Context, digest string) (*ArchiveContentResponse, error) {
	if digest == "" {
		return nil, fmt.Errorf("console client: digest is required")
	}
	var response ArchiveContentResponse
	if err := c.doRequest(ctx, http.MethodGet, "/archives/"+url.PathEscape(digest), nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// StartDeploy launches a detached compose deploy and returns the log
// file the streaming endpoint accepts.
func (c *Client) StartDeploy(ctx context.Context, project string, build bool) (*DeployStartResponse, error) {
	request := DeployStartRequest{ComposeProject: project, Build: build}
	var response DeployStartResponse
	if err := c.doRequest(ctx, http.MethodPost, "/deploy/start", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// StreamEvent is one decoded SSE event from the deploy log stream.
// Exactly one field is non-nil.
type StreamEvent struct {
	Log      *LogEvent
	Status   *StatusEvent
	Error    *ErrorEvent
	Complete *CompleteEvent
}

// StreamDeployLog consumes the SSE deploy log stream, invoking handle
// for each event in order. It returns when the server sends the
// complete event, when handle returns an error (propagated), or when
// ctx is cancelled. Cancelling the context closes the connection,
// which stops the console's backend polling for this session.
func (c *Client) StreamDeployLog(ctx context.Context, logFile string, handle func(StreamEvent) error) error {
	endpoint := c.baseURL + "/deploy/logs/stream?logFile=" + url.QueryEscape(logFile)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("console client: creating stream request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.token.String())
	request.Header.Set("Accept", "text/event-stream")

	response, err := c.streamClient.Do(request)
	if err != nil {
		return fmt.Errorf("console client: opening stream: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: response.StatusCode,
			Message:    decodeErrorMessage(response.Body),
		}
	}

	// A data line carries a JSON-encoded log chunk which can approach
	// the gateway's output cap, so the scanner needs far more than its
	// 64 KB default.
	scanner := bufio.NewScanner(response.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), int(httpx.MaxBodySize))

	var eventName, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if eventName == "" {
				continue
			}
			event, err := decodeStreamEvent(eventName, data)
			if err != nil {
				return err
			}
			if err := handle(event); err != nil {
				return err
			}
			if event.Complete != nil {
				return nil
			}
			eventName, data = "", ""
		case strings.HasPrefix(line, "event: "):
			eventName = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("console client: reading stream: %w", err)
	}
	// Stream ended without a complete event: the server went away
	// mid-session.
	return fmt.Errorf("console client: stream closed before completion")
}

// decodeStreamEvent decodes one named SSE payload into a StreamEvent.
func decodeStreamEvent(name, data string) (StreamEvent, error) {
	var event StreamEvent
	var target any
	switch name {
	case eventLog:
		event.Log = &LogEvent{}
		target = event.Log
	case eventStatus:
		event.Status = &StatusEvent{}
		target = event.Status
	case eventError:
		event.Error = &ErrorEvent{}
		target = event.Error
	case eventComplete:
		event.Complete = &CompleteEvent{}
		target = event.Complete
	default:
		return event, fmt.Errorf("console client: unknown stream event %q", name)
	}
	if err := json.Unmarshal([]byte(data), target); err != nil {
		return event, fmt.Errorf("console client: decoding %s event: %w", name, err)
	}
	return event, nil
}

// doRequest performs one API call: JSON request body (when non-nil),
// bearer token, bounded response read, JSON decode into out (when
// non-nil). Non-2xx responses decode the console's {error} envelope
// into an *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody, out any) error {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("console client: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("console client: creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Authorization", "Bearer "+c.token.String())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("console client: %s %s: %w", method, path, err)
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
		return fmt.Errorf("console client: decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeErrorMessage extracts the {error} envelope, falling back to
// the raw body for non-JSON responses.
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
