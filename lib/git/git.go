// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package git provides typed access to the git CLI for deploy
// operations: pulling a working tree and resolving its HEAD commit.
// All commands target a specific repository directory via the -C flag,
// injected by every Repository method.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Repository represents a git repository at a specific directory.
// There is no default directory; callers always say which repository
// they mean.
type Repository struct {
	dir string
}

// NewRepository returns a Repository targeting the given working tree.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Run executes a git command targeting this repository and returns
// combined stdout and stderr. Git writes progress to stderr ("Updating
// 1ab2c3d..4de5f6a", "Already up to date."), and deploy output wants
// those lines, so the streams are merged in command order. On failure
// the combined output is included in the error.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)
	var combined bytes.Buffer
	command := exec.CommandContext(ctx, "git", fullArgs...)
	command.Stdout = &combined
	command.Stderr = &combined

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (output: %s)",
			strings.Join(args, " "), r.dir, err, strings.TrimSpace(combined.String()))
	}
	return combined.String(), nil
}

// PullLocked runs "git pull" with flock(1) serialization. The lock
// file is held for the duration of the pull, so concurrent deploy
// requests against the same repository queue instead of corrupting
// each other's index.
func (r *Repository) PullLocked(ctx context.Context, lockPath string) (string, error) {
	flockArgs := []string{lockPath, "git", "-C", r.dir, "pull"}

	var combined bytes.Buffer
	command := exec.CommandContext(ctx, "flock", flockArgs...)
	command.Stdout = &combined
	command.Stderr = &combined

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git pull in %s: %w (output: %s)",
			r.dir, err, strings.TrimSpace(combined.String()))
	}
	return strings.TrimSpace(combined.String()), nil
}

// Head resolves the repository's current HEAD commit SHA.
func (r *Repository) Head(ctx context.Context) (string, error) {
	output, err := r.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}
