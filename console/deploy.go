// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/bureau-foundation/dockhand/lib/httpx"
)

// composeProjectPattern is the compose project name grammar: lowercase
// alphanumerics, hyphens, and underscores, starting with an
// alphanumeric. Names outside it never reach the shell command the
// deploy interpolates them into.
var composeProjectPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// deployLogNamePattern matches log file names the deploy handler
// generates: deploy-<project>-<unix>.log. Capture 1 is the project.
var deployLogNamePattern = regexp.MustCompile(`^deploy-(.+)-(\d+)\.log$`)

// handleDeployStart launches a detached compose deploy through the
// gateway shell. The build runs under nohup with its output redirected
// to a log file, and its PID recorded next to it, so the streaming
// endpoint can tail the log and probe liveness long after this request
// has returned.
func (s *Server) handleDeployStart(writer http.ResponseWriter, request *http.Request) {
	var startRequest DeployStartRequest
	if err := httpx.DecodeJSON(request.Body, &startRequest); err != nil {
		writeError(writer, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	project := startRequest.ComposeProject
	if project == "" {
		writeError(writer, http.StatusBadRequest, "compose_project is required")
		return
	}
	if !composeProjectPattern.MatchString(project) {
		writeError(writer, http.StatusBadRequest, "compose_project %q is not a valid compose project name", project)
		return
	}

	allowlist, err := s.gateway.Allowlist(request.Context())
	if err != nil {
		s.logger.Warn("allowlist fetch failed", "error", err)
		writeError(writer, http.StatusBadGateway, "fetching gateway allowlist: %v", err)
		return
	}
	if !slices.Contains(allowlist.ComposeProjects, project) {
		s.logger.Warn("deploy rejected, project not allowlisted", "project", project)
		writeError(writer, http.StatusForbidden, "compose project %q is not allowlisted", project)
		return
	}

	startedAt := s.clock.Now().UTC()
	logPath := filepath.Join(s.config.DeployLogDir,
		fmt.Sprintf("deploy-%s-%d.log", project, startedAt.Unix()))

	buildFlag := ""
	if startRequest.Build {
		buildFlag = " --build"
	}
	command := fmt.Sprintf("nohup docker compose -p %s up -d%s > %s 2>&1 & echo $! > %s.pid",
		project, buildFlag, logPath, logPath)

	result, err := s.gateway.Shell(request.Context(), command, "")
	if err != nil {
		s.logger.Error("deploy start failed", "project", project, "error", err)
		writeError(writer, http.StatusBadGateway, "starting deploy: %v", err)
		return
	}
	if !result.Success {
		s.logger.Error("deploy start command failed",
			"project", project,
			"exit_code", result.ExitCode,
			"stderr", result.Stderr,
		)
		writeError(writer, http.StatusBadGateway, "starting deploy: command exited %d: %s", result.ExitCode, result.Stderr)
		return
	}

	s.logger.Info("deploy started", "project", project, "log_file", logPath, "build", startRequest.Build)
	writeJSON(writer, http.StatusOK, DeployStartResponse{
		LogFile:   logPath,
		Project:   project,
		StartedAt: startedAt,
	})
}

// parseDeployLogProject extracts the compose project from a log file
// name generated by handleDeployStart. Logs with other names are not
// console-started deploys and are not archived.
func parseDeployLogProject(name string) (string, bool) {
	match := deployLogNamePattern.FindStringSubmatch(name)
	if match == nil {
		return "", false
	}
	return match[1], true
}
