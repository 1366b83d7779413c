// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadAllowlistMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nonexistent.json")
	allowlist := LoadAllowlist(path, discardLogger())

	if got := allowlist.Counts(); got != (AllowlistCounts{}) {
		t.Errorf("missing file: got counts %+v, want all zero", got)
	}
}

func TestLoadAllowlistGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "allowlist.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	allowlist := LoadAllowlist(path, discardLogger())
	if got := allowlist.Counts(); got != (AllowlistCounts{}) {
		t.Errorf("garbage file: got counts %+v, want all zero", got)
	}
}

func TestLoadAllowlistComments(t *testing.T) {
	t.Parallel()

	document := `{
  // repositories the gateway may pull
  "repo_paths": ["/srv/app"],
  "compose_projects": ["web" /* main stack */],
  "container_names": []
}`
	path := filepath.Join(t.TempDir(), "allowlist.json")
	if err := os.WriteFile(path, []byte(document), 0o600); err != nil {
		t.Fatal(err)
	}

	allowlist := LoadAllowlist(path, discardLogger())
	if !reflect.DeepEqual(allowlist.RepoPaths, []string{"/srv/app"}) {
		t.Errorf("repo_paths = %v, want [/srv/app]", allowlist.RepoPaths)
	}
	if !reflect.DeepEqual(allowlist.ComposeProjects, []string{"web"}) {
		t.Errorf("compose_projects = %v, want [web]", allowlist.ComposeProjects)
	}
}

func TestLoadAllowlistNormalizes(t *testing.T) {
	t.Parallel()

	document := `{
  "repo_paths": ["/srv/b", "/srv/a", "/srv/b", "  /srv/c  ", ""],
  "compose_projects": [],
  "container_names": []
}`
	path := filepath.Join(t.TempDir(), "allowlist.json")
	if err := os.WriteFile(path, []byte(document), 0o600); err != nil {
		t.Fatal(err)
	}

	allowlist := LoadAllowlist(path, discardLogger())
	want := []string{"/srv/a", "/srv/b", "/srv/c"}
	if !reflect.DeepEqual(allowlist.RepoPaths, want) {
		t.Errorf("repo_paths = %v, want %v", allowlist.RepoPaths, want)
	}
}

// Saving a loaded allowlist must reproduce the document byte for byte:
// normalization happens on both load and save, so the round trip is a
// fixed point.
func TestSaveLoadFixedPoint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")

	original := &Allowlist{
		RepoPaths:       []string{"/srv/b", "/srv/a", "/srv/a"},
		ComposeProjects: []string{"web", "db"},
		ContainerNames:  []string{"nginx"},
	}
	if err := SaveAllowlist(first, original); err != nil {
		t.Fatalf("SaveAllowlist: %v", err)
	}

	loaded := LoadAllowlist(first, discardLogger())
	if err := SaveAllowlist(second, loaded); err != nil {
		t.Fatalf("SaveAllowlist (second): %v", err)
	}

	firstBytes, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	secondBytes, err := os.ReadFile(second)
	if err != nil {
		t.Fatal(err)
	}
	if string(firstBytes) != string(secondBytes) {
		t.Errorf("save(load(x)) != x:\nfirst:\n%s\nsecond:\n%s", firstBytes, secondBytes)
	}

	wantRepos := []string{"/srv/a", "/srv/b"}
	if !reflect.DeepEqual(loaded.RepoPaths, wantRepos) {
		t.Errorf("loaded repo_paths = %v, want %v", loaded.RepoPaths, wantRepos)
	}
}

func TestSaveAllowlistDoesNotMutateArgument(t *testing.T) {
	t.Parallel()

	allowlist := &Allowlist{RepoPaths: []string{"/b", "/a"}}
	path := filepath.Join(t.TempDir(), "allowlist.json")
	if err := SaveAllowlist(path, allowlist); err != nil {
		t.Fatalf("SaveAllowlist: %v", err)
	}
	if !reflect.DeepEqual(allowlist.RepoPaths, []string{"/b", "/a"}) {
		t.Errorf("argument mutated: %v", allowlist.RepoPaths)
	}
}

func TestAllowlistValidate(t *testing.T) {
	t.Parallel()

	allowlist := &Allowlist{
		RepoPaths:       []string{"/srv/app"},
		ComposeProjects: []string{"web"},
		ContainerNames:  []string{"nginx"},
	}

	tests := []struct {
		name     string
		request  OperationRequest
		wantKind ValidationKind // empty means valid
	}{
		{
			name:    "allowlisted_repo",
			request: OperationRequest{Operation: OperationGitPull, Target: Target{RepoPath: "/srv/app"}},
		},
		{
			name:     "unknown_repo",
			request:  OperationRequest{Operation: OperationGitPull, Target: Target{RepoPath: "/srv/other"}},
			wantKind: ValidationNotAllowlisted,
		},
		{
			name:    "allowlisted_container",
			request: OperationRequest{Operation: OperationDockerRestart, Target: Target{ContainerName: "nginx"}},
		},
		{
			name:     "unknown_container",
			request:  OperationRequest{Operation: OperationDockerRestart, Target: Target{ContainerName: "postgres"}},
			wantKind: ValidationNotAllowlisted,
		},
		{
			name:    "allowlisted_project",
			request: OperationRequest{Operation: OperationComposeUp, Target: Target{ComposeProject: "web"}},
		},
		{
			name:     "unknown_project",
			request:  OperationRequest{Operation: OperationComposeUp, Target: Target{ComposeProject: "api"}},
			wantKind: ValidationNotAllowlisted,
		},
		{
			// Both fields populated, one absent: rejected regardless
			// of which field the operation would actually use.
			name: "one_of_two_fields_unknown",
			request: OperationRequest{
				Operation: OperationDockerRestart,
				Target:    Target{ContainerName: "nginx", ComposeProject: "api"},
			},
			wantKind: ValidationNotAllowlisted,
		},
		{
			name: "all_fields_known",
			request: OperationRequest{
				Operation: OperationDockerRebuild,
				Target:    Target{ComposeProject: "web", ContainerName: "nginx", RepoPath: "/srv/app"},
			},
		},
		{
			// service_name is scoped within a compose project and has
			// no allowlist set of its own.
			name: "service_name_not_checked",
			request: OperationRequest{
				Operation: OperationDockerRebuild,
				Target:    Target{ComposeProject: "web", ServiceName: "anything"},
			},
		},
		{
			name:     "unknown_operation",
			request:  OperationRequest{Operation: "docker_nuke", Target: Target{ContainerName: "nginx"}},
			wantKind: ValidationInvalidOperation,
		},
		{
			name:    "empty_target_passes_membership",
			request: OperationRequest{Operation: OperationGitPull},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			err := allowlist.Validate(&test.request)
			if test.wantKind == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}

			var validationError *ValidationError
			if !errors.As(err, &validationError) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if validationError.Kind != test.wantKind {
				t.Errorf("Kind = %q, want %q", validationError.Kind, test.wantKind)
			}
		})
	}
}

func TestAllowlistCloneIsIndependent(t *testing.T) {
	t.Parallel()

	original := &Allowlist{RepoPaths: []string{"/srv/app"}}
	copied := original.Clone()
	copied.RepoPaths[0] = "/srv/changed"

	if original.RepoPaths[0] != "/srv/app" {
		t.Errorf("mutating the clone changed the original: %v", original.RepoPaths)
	}
}

func TestNormalizeSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "empty", input: nil, want: []string{}},
		{name: "sorted_dedup", input: []string{"b", "a", "b"}, want: []string{"a", "b"}},
		{name: "trims_whitespace", input: []string{" a ", "a"}, want: []string{"a"}},
		{name: "drops_empty", input: []string{"", "  ", "a"}, want: []string{"a"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got := normalizeSet(test.input)
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("normalizeSet(%v) = %v, want %v", test.input, got, test.want)
			}
		})
	}
}
