// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/bureau-foundation/dockhand/lib/secret"
)

func newTestClient(t *testing.T, baseURL, token string) *Client {
	t.Helper()

	buffer, err := secret.NewFromBytes([]byte(token))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { buffer.Close() })

	client, err := NewClient(ClientOptions{BaseURL: baseURL, Token: buffer})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestClientRequiresConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(ClientOptions{}); err == nil {
		t.Error("NewClient without base URL succeeded, want error")
	}
	if _, err := NewClient(ClientOptions{BaseURL: "http://localhost"}); err == nil {
		t.Error("NewClient without token succeeded, want error")
	}
}

func TestClientTrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	token, err := secret.NewFromBytes([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	defer token.Close()

	client, err := NewClient(ClientOptions{BaseURL: "http://localhost:9500///", Token: token})
	if err != nil {
		t.Fatal(err)
	}
	if client.baseURL != "http://localhost:9500" {
		t.Errorf("baseURL = %q, want trailing slashes trimmed", client.baseURL)
	}
}

func TestClientHealth(t *testing.T) {
	t.Parallel()

	_, baseURL := newTestServer(t)
	client := newTestClient(t, baseURL, testToken)

	health, err := client.Health(t.Context())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "ok" || health.Service != serviceName {
		t.Errorf("health = %+v, want ok from %s", health, serviceName)
	}
}

func TestClientAllowlistRoundTrip(t *testing.T) {
	t.Parallel()

	_, baseURL := newTestServer(t)
	client := newTestClient(t, baseURL, testToken)
	ctx := t.Context()

	saved, err := client.ReplaceAllowlist(ctx, &Allowlist{
		RepoPaths:      []string{"/srv/zeta", "/srv/alpha"},
		ContainerNames: []string{"nginx"},
	})
	if err != nil {
		t.Fatalf("ReplaceAllowlist: %v", err)
	}
	if len(saved.RepoPaths) != 2 || saved.RepoPaths[0] != "/srv/alpha" {
		t.Errorf("saved repo_paths = %v, want sorted [/srv/alpha /srv/zeta]", saved.RepoPaths)
	}

	fetched, err := client.Allowlist(ctx)
	if err != nil {
		t.Fatalf("Allowlist: %v", err)
	}
	if len(fetched.ContainerNames) != 1 || fetched.ContainerNames[0] != "nginx" {
		t.Errorf("fetched container_names = %v, want [nginx]", fetched.ContainerNames)
	}

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Allowlist.RepoPaths != 2 {
		t.Errorf("status repo_paths count = %d, want 2", status.Allowlist.RepoPaths)
	}
}

func TestClientExecuteRejection(t *testing.T) {
	t.Parallel()

	_, baseURL := newTestServer(t)
	client := newTestClient(t, baseURL, testToken)

	_, err := client.Execute(t.Context(), &OperationRequest{
		Operation: OperationDockerRestart,
		Target:    Target{ContainerName: "not-allowed"},
	})
	if err == nil {
		t.Fatal("Execute on a non-allowlisted container succeeded, want error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T (%v), want *APIError", err, err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Message, "not allowlisted") {
		t.Errorf("Message = %q, want the decoded error envelope", apiErr.Message)
	}
}

func TestClientShell(t *testing.T) {
	t.Parallel()

	_, baseURL := newTestServer(t)
	client := newTestClient(t, baseURL, testToken)

	result, err := client.Shell(t.Context(), "printf ok", "")
	if err != nil {
		t.Fatalf("Shell: %v", err)
	}
	if !result.Success || result.Stdout != "ok" {
		t.Errorf("result = %+v, want success with stdout %q", result, "ok")
	}
}

func TestClientShellBlocked(t *testing.T) {
	t.Parallel()

	_, baseURL := newTestServer(t)
	client := newTestClient(t, baseURL, testToken)

	_, err := client.Shell(t.Context(), "shutdown -h now", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T (%v), want *APIError", err, err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", apiErr.StatusCode)
	}
}

func TestClientWrongToken(t *testing.T) {
	t.Parallel()

	_, baseURL := newTestServer(t)
	client := newTestClient(t, baseURL, "not-the-token")

	_, err := client.Allowlist(t.Context())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T (%v), want *APIError", err, err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
}

func TestClientUnreachableGateway(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "http://127.0.0.1:1", testToken)

	_, err := client.Health(t.Context())
	if err == nil {
		t.Fatal("Health against a closed port succeeded, want error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("transport failure surfaced as *APIError %v, want plain error", apiErr)
	}
}

func TestDecodeErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "json_envelope", body: `{"error":"operation nope is not known"}`, want: "operation nope is not known"},
		{name: "non_json", body: "502 Bad Gateway", want: "502 Bad Gateway"},
		{name: "json_without_error_field", body: `{"status":"broken"}`, want: `{"status":"broken"}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got := decodeErrorMessage(strings.NewReader(test.body))
			if got != test.want {
				t.Errorf("decodeErrorMessage(%q) = %q, want %q", test.body, got, test.want)
			}
		})
	}
}
