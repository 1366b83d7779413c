// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tidwall/jsonc"
)

// Allowlist names the repositories, compose projects, and containers
// the gateway is willing to operate on. Each field is a set modeled as
// a sorted, deduplicated slice; the document on disk is plain JSON with
// exactly these keys (comments are tolerated on read).
//
// Instances are treated as immutable once published: the HTTP layer
// holds the current allowlist in an atomic pointer and replaces the
// whole value on every management update.
type Allowlist struct {
	RepoPaths       []string `json:"repo_paths"`
	ComposeProjects []string `json:"compose_projects"`
	ContainerNames  []string `json:"container_names"`
}

// DefaultAllowlist returns the allowlist used when no document exists
// on disk: all sets empty, so nothing is executable until an operator
// installs a real allowlist through the management endpoint.
func DefaultAllowlist() *Allowlist {
	return &Allowlist{
		RepoPaths:       []string{},
		ComposeProjects: []string{},
		ContainerNames:  []string{},
	}
}

// LoadAllowlist reads the allowlist document at path. A missing or
// unreadable file is not fatal: the default (empty) allowlist is
// returned and the fallback is logged, so a corrupt document can never
// keep the gateway from starting. The document may contain // and
// /* */ comments; they are stripped before parsing.
func LoadAllowlist(path string, logger *slog.Logger) *Allowlist {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("allowlist file missing, starting with empty allowlist", "path", path)
		} else {
			logger.Warn("allowlist file unreadable, starting with empty allowlist",
				"path", path, "error", err)
		}
		return DefaultAllowlist()
	}

	var allowlist Allowlist
	if err := json.Unmarshal(jsonc.ToJSON(data), &allowlist); err != nil {
		logger.Warn("allowlist file malformed, starting with empty allowlist",
			"path", path, "error", err)
		return DefaultAllowlist()
	}

	allowlist.normalize()
	return &allowlist
}

// SaveAllowlist atomically replaces the allowlist document at path.
// The document is normalized, written to a temporary file in the same
// directory, fsynced, and renamed into place; readers never see a
// partial write. The parent directory is created if absent.
func SaveAllowlist(path string, allowlist *Allowlist) error {
	normalized := allowlist.Clone()
	normalized.normalize()

	data, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling allowlist: %w", err)
	}
	// Trailing newline for clean file content.
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating allowlist directory: %w", err)
	}

	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary allowlist file: %w", err)
	}

	// Write, sync, close, rename — in that order. If any step fails,
	// remove the temporary file and report the first error.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary allowlist file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary allowlist file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary allowlist file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming allowlist file into place: %w", err)
	}

	// Sync the parent directory so the rename survives power loss
	// between the rename and the OS flushing directory metadata.
	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}

// Clone returns a deep copy. The receiver is never modified by
// package code after publication; Clone exists so callers can
// normalize or edit without racing readers of the shared pointer.
func (a *Allowlist) Clone() *Allowlist {
	return &Allowlist{
		RepoPaths:       slices.Clone(a.RepoPaths),
		ComposeProjects: slices.Clone(a.ComposeProjects),
		ContainerNames:  slices.Clone(a.ContainerNames),
	}
}

// Counts reports set sizes for the status endpoint.
func (a *Allowlist) Counts() AllowlistCounts {
	return AllowlistCounts{
		RepoPaths:       len(a.RepoPaths),
		ComposeProjects: len(a.ComposeProjects),
		ContainerNames:  len(a.ContainerNames),
	}
}

// Validate checks an operation request against the allowlist. The
// operation must be recognized and every populated identifier field in
// the target must be a member of the corresponding set. ServiceName is
// scoped within its compose project and is not checked against a set.
//
// Validation is purely functional: it never touches the filesystem or
// spawns anything, and runs before every execution path.
func (a *Allowlist) Validate(request *OperationRequest) error {
	if !request.Operation.Known() {
		return &ValidationError{
			Kind:  ValidationInvalidOperation,
			Field: "operation",
			Value: string(request.Operation),
		}
	}

	target := request.Target
	if target.RepoPath != "" && !slices.Contains(a.RepoPaths, target.RepoPath) {
		return &ValidationError{
			Kind:  ValidationNotAllowlisted,
			Field: "repo_path",
			Value: target.RepoPath,
		}
	}
	if target.ComposeProject != "" && !slices.Contains(a.ComposeProjects, target.ComposeProject) {
		return &ValidationError{
			Kind:  ValidationNotAllowlisted,
			Field: "compose_project",
			Value: target.ComposeProject,
		}
	}
	if target.ContainerName != "" && !slices.Contains(a.ContainerNames, target.ContainerName) {
		return &ValidationError{
			Kind:  ValidationNotAllowlisted,
			Field: "container_name",
			Value: target.ContainerName,
		}
	}
	return nil
}

// normalize sorts each set, removes duplicates, trims surrounding
// whitespace, and drops empty entries. Load and save both normalize,
// so saving a loaded allowlist reproduces the same document.
func (a *Allowlist) normalize() {
	a.RepoPaths = normalizeSet(a.RepoPaths)
	a.ComposeProjects = normalizeSet(a.ComposeProjects)
	a.ContainerNames = normalizeSet(a.ContainerNames)
}

func normalizeSet(values []string) []string {
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			normalized = append(normalized, value)
		}
	}
	slices.Sort(normalized)
	return slices.Compact(normalized)
}
