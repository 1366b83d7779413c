// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"time"

	"github.com/bureau-foundation/dockhand/lib/clock"
	"github.com/bureau-foundation/dockhand/logarchive"
)

// deployLogFilePattern bounds the file names the streaming endpoint
// accepts. The name is interpolated into gateway shell commands, so
// the character set excludes quoting, whitespace, and substitution.
var deployLogFilePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*\.log$`)

// handleStream is GET /deploy/logs/stream?logFile=<path>: a
// Server-Sent Events channel that tails a deploy log by polling the
// gateway, emitting log, status, and error events and exactly one
// terminal complete event.
func (s *Server) handleStream(writer http.ResponseWriter, request *http.Request) {
	logPath, err := s.validateLogPath(request.URL.Query().Get("logFile"))
	if err != nil {
		writeError(writer, http.StatusBadRequest, "%v", err)
		return
	}

	flusher, ok := writer.(http.Flusher)
	if !ok {
		writeError(writer, http.StatusInternalServerError, "streaming unsupported by the underlying connection")
		return
	}

	writer.Header().Set("Content-Type", "text/event-stream")
	writer.Header().Set("Cache-Control", "no-cache")
	writer.Header().Set("X-Accel-Buffering", "no")
	writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	session := &streamSession{
		gateway:      s.gateway,
		archive:      s.archive,
		clock:        s.clock,
		logger:       s.logger.With("log_file", logPath),
		logPath:      logPath,
		maxPolls:     s.config.Stream.MaxPolls,
		pollInterval: s.config.PollInterval(),
		sse:          &sseWriter{writer: writer, flusher: flusher},
	}
	session.run(request.Context())
}

// validateLogPath admits only files directly inside the deploy-log
// directory whose names match the generated-log grammar. Everything
// else, traversal attempts included, is a 400.
func (s *Server) validateLogPath(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("logFile query parameter is required")
	}

	cleaned := filepath.Clean(raw)
	if filepath.Dir(cleaned) != filepath.Clean(s.config.DeployLogDir) {
		return "", fmt.Errorf("log file must be inside %s", s.config.DeployLogDir)
	}
	if !deployLogFilePattern.MatchString(filepath.Base(cleaned)) {
		return "", fmt.Errorf("log file name %q is not a deploy log", filepath.Base(cleaned))
	}
	return cleaned, nil
}

// streamSession is one SSE connection tailing a deploy log. The
// offset is per-connection: a reconnecting client starts over from
// byte zero.
type streamSession struct {
	gateway      GatewayClient
	archive      *logarchive.Archive
	clock        clock.Clock
	logger       *slog.Logger
	logPath      string
	maxPolls     int
	pollInterval time.Duration
	sse          *sseWriter

	// offset is the count of log bytes already sent.
	offset int64
}

// run polls the gateway until the build completes, the poll bound is
// exhausted, or the client disconnects. Each iteration probes build
// liveness, reads bytes past the current offset, and reports status.
// A failed write to the client stops the session immediately; no
// further gateway calls are made.
func (s *streamSession) run(ctx context.Context) {
	timedOut := true

	for poll := 0; poll < s.maxPolls; poll++ {
		if ctx.Err() != nil {
			s.logger.Debug("stream cancelled", "polls", poll)
			return
		}

		running, probeErr := s.probeRunning(ctx)
		if probeErr != nil {
			// Transient gateway unavailability: report it and keep
			// polling until the bound runs out. The read is skipped
			// because it would hit the same backend.
			if !s.emit(eventError, ErrorEvent{Error: probeErr.Error()}) {
				return
			}
			running = true
		} else {
			chunk, readErr := s.readNewBytes(ctx)
			if readErr != nil {
				if !s.emit(eventError, ErrorEvent{Error: readErr.Error()}) {
					return
				}
			} else if len(chunk) > 0 {
				if !s.emit(eventLog, LogEvent{Content: chunk, Bytes: len(chunk)}) {
					return
				}
				s.offset += int64(len(chunk))
			}
		}

		if !s.emit(eventStatus, StatusEvent{Running: running, Offset: s.offset}) {
			return
		}

		if !running {
			timedOut = false
			break
		}

		select {
		case <-ctx.Done():
			s.logger.Debug("stream cancelled during poll wait", "polls", poll+1)
			return
		case <-s.clock.After(s.pollInterval):
		}
	}

	s.archiveLog(ctx, timedOut)
	s.emit(eventComplete, CompleteEvent{TotalBytes: s.offset, TimedOut: timedOut})
	s.logger.Info("deploy log stream finished", "total_bytes", s.offset, "timed_out", timedOut)
}

// probeRunning asks the gateway whether the deploy process recorded
// in the pidfile is still alive. A missing pidfile reads as not
// running: the empty command substitution makes kill exit non-zero.
func (s *streamSession) probeRunning(ctx context.Context) (bool, error) {
	result, err := s.gateway.Shell(ctx, fmt.Sprintf("kill -0 $(cat %s.pid)", s.logPath), "")
	if err != nil {
		return false, fmt.Errorf("probing deploy liveness: %w", err)
	}
	return result.Success, nil
}

// readNewBytes fetches log content past the current offset. tail -c
// addresses bytes 1-based, so offset+1 resumes exactly after the last
// byte already streamed. A failed tail (log not created yet) reads as
// zero new bytes rather than an error.
func (s *streamSession) readNewBytes(ctx context.Context) (string, error) {
	result, err := s.gateway.Shell(ctx, fmt.Sprintf("tail -c +%d %s", s.offset+1, s.logPath), "")
	if err != nil {
		return "", fmt.Errorf("reading deploy log: %w", err)
	}
	if !result.Success {
		return "", nil
	}
	return result.Stdout, nil
}

// emit sends one event. A false return means the client is gone and
// the session must stop without touching the gateway again.
func (s *streamSession) emit(event string, payload any) bool {
	if err := s.sse.send(event, payload); err != nil {
		s.logger.Debug("stream client disconnected", "event", event, "error", err)
		return false
	}
	return true
}

// archiveLog stores the finished deploy log in the archive. Archival
// is best-effort: the stream completes normally even when it fails.
// Only console-generated log names are archived; idempotent storage
// makes re-streamed deploys free.
func (s *streamSession) archiveLog(ctx context.Context, timedOut bool) {
	project, ok := parseDeployLogProject(filepath.Base(s.logPath))
	if !ok {
		s.logger.Debug("log file name not console-generated, skipping archive")
		return
	}

	record, err := s.archive.Store(ctx, project, s.logPath, timedOut)
	if err != nil {
		s.logger.Warn("deploy log archive failed", "error", err)
		return
	}
	s.logger.Info("deploy log archived",
		"digest", record.Digest[:12],
		"project", project,
		"timed_out", timedOut,
	)
}

// sseWriter frames Server-Sent Events. Every event is flushed
// immediately so proxies and the net/http buffer never delay a poll's
// output.
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
}

func (w *sseWriter) send(event string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event, encoded); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}
