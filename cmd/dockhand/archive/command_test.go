// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/dockhand/console"
	"github.com/bureau-foundation/dockhand/logarchive"
)

func writeTokenFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("test-token"), 0o600); err != nil {
		t.Fatalf("writing token file: %v", err)
	}
	return path
}

func connectionArgs(serverURL, tokenPath string) []string {
	return []string{"--console", serverURL, "--token-file", tokenPath}
}

// fakeDigest builds a full-length content address from a repeated hex
// character.
func fakeDigest(c byte) string {
	return strings.Repeat(string(c), fullDigestLength)
}

func archiveIndex(records ...logarchive.ArchiveRecord) console.ArchiveListResponse {
	return console.ArchiveListResponse{Archives: records}
}

func TestArchiveCommandSubcommands(t *testing.T) {
	command := Command()

	if command.Name != "archive" {
		t.Errorf("command name = %q, want %q", command.Name, "archive")
	}

	expected := map[string]bool{
		"list": false,
		"show": false,
	}
	for _, sub := range command.Subcommands {
		if _, ok := expected[sub.Name]; !ok {
			t.Errorf("unexpected subcommand %q", sub.Name)
			continue
		}
		expected[sub.Name] = true
	}
	for name, seen := range expected {
		if !seen {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestListPassesLimit(t *testing.T) {
	tokenPath := writeTokenFile(t)

	var gotLimit string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/archives" {
			t.Errorf("request path = %q, want /archives", request.URL.Path)
		}
		gotLimit = request.URL.Query().Get("limit")
		json.NewEncoder(writer).Encode(archiveIndex(logarchive.ArchiveRecord{
			Digest:    fakeDigest('a'),
			Project:   "shop",
			RawSize:   2048,
			CreatedAt: time.Now().Add(-time.Hour),
		}))
	}))
	defer server.Close()

	command := listCommand()
	args := append([]string{"--limit", "10"}, connectionArgs(server.URL, tokenPath)...)
	if err := command.Execute(args); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if gotLimit != "10" {
		t.Errorf("limit = %q, want %q", gotLimit, "10")
	}
}

func TestShowFullDigestSkipsIndexScan(t *testing.T) {
	tokenPath := writeTokenFile(t)
	digest := fakeDigest('a')

	var listCalls int
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/archives":
			listCalls++
			json.NewEncoder(writer).Encode(archiveIndex())
		case "/archives/" + digest:
			json.NewEncoder(writer).Encode(console.ArchiveContentResponse{
				ArchiveRecord: logarchive.ArchiveRecord{Digest: digest, Project: "shop"},
				Content:       "build output\n",
			})
		default:
			t.Errorf("unexpected request path %q", request.URL.Path)
		}
	}))
	defer server.Close()

	command := showCommand()
	args := append([]string{digest}, connectionArgs(server.URL, tokenPath)...)
	if err := command.Execute(args); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if listCalls != 0 {
		t.Errorf("full digest triggered %d index scans, want 0", listCalls)
	}
}

func TestShowResolvesPrefix(t *testing.T) {
	tokenPath := writeTokenFile(t)
	digest := fakeDigest('a')

	var fetchedPath string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/archives":
			json.NewEncoder(writer).Encode(archiveIndex(
				logarchive.ArchiveRecord{Digest: digest, Project: "shop"},
				logarchive.ArchiveRecord{Digest: fakeDigest('b'), Project: "blog"},
			))
		default:
			fetchedPath = request.URL.Path
			json.NewEncoder(writer).Encode(console.ArchiveContentResponse{
				ArchiveRecord: logarchive.ArchiveRecord{Digest: digest, Project: "shop"},
				Content:       "build output\n",
			})
		}
	}))
	defer server.Close()

	command := showCommand()
	args := append([]string{"aaaa"}, connectionArgs(server.URL, tokenPath)...)
	if err := command.Execute(args); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if fetchedPath != "/archives/"+digest {
		t.Errorf("fetched %q, want the resolved digest path", fetchedPath)
	}
}

func TestShowAmbiguousPrefix(t *testing.T) {
	tokenPath := writeTokenFile(t)

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		json.NewEncoder(writer).Encode(archiveIndex(
			logarchive.ArchiveRecord{Digest: "aa" + strings.Repeat("0", 62)},
			logarchive.ArchiveRecord{Digest: "aa" + strings.Repeat("1", 62)},
		))
	}))
	defer server.Close()

	command := showCommand()
	args := append([]string{"aa"}, connectionArgs(server.URL, tokenPath)...)
	err := command.Execute(args)
	if err == nil {
		t.Fatal("Execute() = nil, want ambiguity error")
	}
	if !strings.Contains(err.Error(), "ambiguous") {
		t.Errorf("error = %q, want ambiguity report", err.Error())
	}
}

func TestShowUnknownPrefix(t *testing.T) {
	tokenPath := writeTokenFile(t)

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(writer).Encode(archiveIndex())
	}))
	defer server.Close()

	command := showCommand()
	args := append([]string{"f3a9"}, connectionArgs(server.URL, tokenPath)...)
	err := command.Execute(args)
	if err == nil {
		t.Fatal("Execute() = nil, want not-found error")
	}
	if !strings.Contains(err.Error(), "no archive matches") {
		t.Errorf("error = %q, want no-match report", err.Error())
	}
}

func TestShowRequiresDigest(t *testing.T) {
	command := showCommand()
	err := command.Execute(nil)
	if err == nil {
		t.Fatal("Execute() = nil, want usage error")
	}
	if !strings.Contains(err.Error(), "usage: dockhand archive show <digest>") {
		t.Errorf("error = %q, want show usage", err.Error())
	}
}
