// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bureau-foundation/dockhand/lib/secret"
	"github.com/bureau-foundation/dockhand/portainer"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	token, err := secret.NewFromBytes([]byte("client-test-token"))
	if err != nil {
		t.Fatalf("building token: %v", err)
	}
	t.Cleanup(func() { token.Close() })

	client, err := NewClient(ClientOptions{BaseURL: server.URL, Token: token})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestClientSendsBearerToken(t *testing.T) {
	t.Parallel()

	var gotAuthorization string
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		gotAuthorization = request.Header.Get("Authorization")
		writer.Header().Set("Content-Type", "application/json")
		fmt.Fprint(writer, `{"status":"ok","service":"dockhand-console","version":"test"}`)
	}))

	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Service != "dockhand-console" {
		t.Errorf("Service = %q", health.Service)
	}
	if gotAuthorization != "Bearer client-test-token" {
		t.Errorf("Authorization = %q", gotAuthorization)
	}
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusForbidden)
		fmt.Fprint(writer, `{"error":"compose project \"shop\" is not allowlisted"}`)
	}))

	_, err := client.StartDeploy(context.Background(), "shop", false)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", apiErr.StatusCode)
	}
	if apiErr.Message != `compose project "shop" is not allowlisted` {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestClientContainerAction(t *testing.T) {
	t.Parallel()

	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		gotPath = request.URL.Path
		writer.Header().Set("Content-Type", "application/json")
		fmt.Fprint(writer, `{"success":true,"message":"container restarted"}`)
	}))

	result, err := client.ContainerAction(context.Background(), "abc123", portainer.ActionRestart)
	if err != nil {
		t.Fatalf("ContainerAction: %v", err)
	}
	if !result.Success {
		t.Error("Success = false")
	}
	if gotPath != "/containers/abc123/restart" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestStreamDeployLogDecodesEvents(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if got := request.URL.Query().Get("logFile"); got != "/var/log/dockhand/deploy-shop-1.log" {
			t.Errorf("logFile = %q", got)
		}
		writer.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(writer, "event: log\ndata: {\"content\":\"pulling images\\n\",\"bytes\":15}\n\n")
		fmt.Fprint(writer, "event: status\ndata: {\"running\":true,\"offset\":15}\n\n")
		fmt.Fprint(writer, "event: error\ndata: {\"error\":\"probe hiccup\"}\n\n")
		fmt.Fprint(writer, "event: complete\ndata: {\"total_bytes\":15,\"timed_out\":false}\n\n")
	}))

	var names []string
	err := client.StreamDeployLog(context.Background(), "/var/log/dockhand/deploy-shop-1.log", func(event StreamEvent) error {
		switch {
		case event.Log != nil:
			names = append(names, "log")
			if event.Log.Content != "pulling images\n" {
				t.Errorf("log content = %q", event.Log.Content)
			}
		case event.Status != nil:
			names = append(names, "status")
			if !event.Status.Running || event.Status.Offset != 15 {
				t.Errorf("status = %+v", *event.Status)
			}
		case event.Error != nil:
			names = append(names, "error")
		case event.Complete != nil:
			names = append(names, "complete")
			if event.Complete.TotalBytes != 15 || event.Complete.TimedOut {
				t.Errorf("complete = %+v", *event.Complete)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("StreamDeployLog: %v", err)
	}

	want := []string{"log", "status", "error", "complete"}
	if len(names) != len(want) {
		t.Fatalf("events = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("events = %v, want %v", names, want)
		}
	}
}

func TestStreamDeployLogPropagatesHandlerError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(writer, "event: status\ndata: {\"running\":true,\"offset\":0}\n\n")
		fmt.Fprint(writer, "event: complete\ndata: {\"total_bytes\":0,\"timed_out\":false}\n\n")
	}))

	handlerErr := errors.New("display broke")
	err := client.StreamDeployLog(context.Background(), "/var/log/deploy-x-1.log", func(StreamEvent) error {
		return handlerErr
	})
	if !errors.Is(err, handlerErr) {
		t.Fatalf("error = %v, want the handler's error", err)
	}
}

func TestStreamDeployLogRejectsTruncatedStream(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(writer, "event: status\ndata: {\"running\":true,\"offset\":0}\n\n")
		// Connection closes without a complete event.
	}))

	err := client.StreamDeployLog(context.Background(), "/var/log/deploy-x-1.log", func(StreamEvent) error {
		return nil
	})
	if err == nil {
		t.Fatal("expected an error for a stream that ended without complete")
	}
}

func TestStreamDeployLogSurfacesHTTPError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(writer, `{"error":"logFile is not a deploy log"}`)
	}))

	err := client.StreamDeployLog(context.Background(), "/etc/passwd", func(StreamEvent) error {
		t.Error("handler called for a rejected stream")
		return nil
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
}
