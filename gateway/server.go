// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/dockhand/lib/clock"
	"github.com/bureau-foundation/dockhand/lib/httpx"
	"github.com/bureau-foundation/dockhand/lib/secret"
	"github.com/bureau-foundation/dockhand/lib/service"
	"github.com/bureau-foundation/dockhand/lib/version"
)

const serviceName = "dockhand-gateway"

// Server is the gateway HTTP API. It owns the current allowlist (an
// atomic pointer replaced wholesale by the management endpoint), the
// bearer token in locked memory, and the two execution surfaces.
type Server struct {
	config   *Config
	logger   *slog.Logger
	clock    clock.Clock
	token    *secret.Buffer
	executor *Executor
	shell    *ShellRunner

	// allowlist is read on every execute; only handlePutAllowlist
	// writes it, serialized by allowlistMu together with the persist
	// so the document on disk and the pointer never diverge.
	allowlist   atomic.Pointer[Allowlist]
	allowlistMu sync.Mutex

	handler    http.Handler
	httpServer *service.HTTPServer
	startedAt  time.Time
}

// ServerOptions configures a Server.
type ServerOptions struct {
	// Config is the validated service configuration. Required.
	Config *Config

	// Logger is the structured logger. Required.
	Logger *slog.Logger

	// Clock defaults to the real clock. Tests inject a fake.
	Clock clock.Clock
}

// NewServer loads the bearer token and allowlist and wires the HTTP
// routes. The returned server is not listening yet; call Serve.
func NewServer(options ServerOptions) (*Server, error) {
	if options.Config == nil {
		return nil, errors.New("config is required")
	}
	if options.Logger == nil {
		return nil, errors.New("logger is required")
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	config := options.Config
	logger := options.Logger

	token, err := secret.ReadFromPath(config.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("loading bearer token: %w", err)
	}

	if config.DeployLogDir != "" {
		if err := os.MkdirAll(config.DeployLogDir, 0755); err != nil {
			token.Close()
			return nil, fmt.Errorf("creating deploy log directory: %w", err)
		}
	}

	server := &Server{
		config: config,
		logger: logger,
		clock:  clk,
		token:  token,
		executor: NewExecutor(ExecutorConfig{
			Timeout:   config.ShellTimeout(),
			MaxOutput: config.MaxOutputBytes,
			Clock:     clk,
			Logger:    logger,
		}),
		shell: NewShellRunner(ShellRunnerConfig{
			Timeout:   config.ShellTimeout(),
			MaxOutput: config.MaxOutputBytes,
			Clock:     clk,
			Logger:    logger,
		}),
		startedAt: clk.Now(),
	}
	server.allowlist.Store(LoadAllowlist(config.AllowlistPath, logger))
	server.handler = server.routes()
	server.httpServer = service.NewHTTPServer(service.HTTPServerConfig{
		Address:         config.ListenAddress,
		Handler:         server.handler,
		ShutdownTimeout: config.ShutdownTimeout(),
		Logger:          logger,
	})
	return server, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /allowlist", s.requireToken(s.handleGetAllowlist))
	mux.HandleFunc("PUT /allowlist", s.requireToken(s.handlePutAllowlist))
	mux.HandleFunc("POST /execute", s.requireToken(s.handleExecute))
	mux.HandleFunc("POST /shell", s.requireToken(s.handleShell))
	return s.requirePrivateAddress(mux)
}

// Serve blocks until ctx is cancelled and in-flight requests drain.
func (s *Server) Serve(ctx context.Context) error {
	return s.httpServer.Serve(ctx)
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.httpServer.Ready()
}

// Addr returns the resolved listen address, valid after Ready.
func (s *Server) Addr() net.Addr {
	return s.httpServer.Addr()
}

// Close releases the bearer token's locked memory. Call after Serve
// returns.
func (s *Server) Close() {
	s.token.Close()
}

// CurrentAllowlist returns the allowlist requests are validated
// against right now.
func (s *Server) CurrentAllowlist() *Allowlist {
	return s.allowlist.Load()
}

// --- middleware ---

// requirePrivateAddress gates every route, including health: the
// gateway runs privileged commands and has no business answering the
// public internet even for liveness probes.
func (s *Server) requirePrivateAddress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !remoteAddressAllowed(request.RemoteAddr, s.config.ExtraNetworks()) {
			s.logger.Warn("request from non-private address rejected",
				"remote", request.RemoteAddr,
				"path", request.URL.Path,
			)
			writeError(writer, http.StatusForbidden, "requests are only accepted from private networks")
			return
		}
		next.ServeHTTP(writer, request)
	})
}

func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		presented, ok := strings.CutPrefix(request.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), s.token.Bytes()) != 1 {
			s.logger.Warn("request with missing or invalid bearer token rejected",
				"remote", request.RemoteAddr,
				"path", request.URL.Path,
			)
			writeError(writer, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		next(writer, request)
	}
}

// remoteAddressAllowed reports whether a request source address is
// loopback, RFC 1918 / ULA private, link-local, or inside one of the
// configured extra prefixes.
func remoteAddressAllowed(remoteAddr string, extra []netip.Prefix) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	address, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	address = address.Unmap()
	if address.IsLoopback() || address.IsPrivate() || address.IsLinkLocalUnicast() {
		return true
	}
	for _, prefix := range extra {
		if prefix.Contains(address) {
			return true
		}
	}
	return false
}

// --- handlers ---

func (s *Server) handleHealth(writer http.ResponseWriter, _ *http.Request) {
	writeJSON(writer, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: serviceName,
		Version: version.Short(),
	})
}

func (s *Server) handleStatus(writer http.ResponseWriter, _ *http.Request) {
	writeJSON(writer, http.StatusOK, StatusResponse{
		Service:       serviceName,
		Version:       version.Short(),
		UptimeSeconds: int64(s.clock.Now().Sub(s.startedAt).Seconds()),
		Allowlist:     s.allowlist.Load().Counts(),
	})
}

func (s *Server) handleGetAllowlist(writer http.ResponseWriter, _ *http.Request) {
	writeJSON(writer, http.StatusOK, s.allowlist.Load())
}

func (s *Server) handlePutAllowlist(writer http.ResponseWriter, request *http.Request) {
	var incoming Allowlist
	if err := httpx.DecodeJSON(request.Body, &incoming); err != nil {
		writeError(writer, http.StatusBadRequest, "invalid allowlist document: %v", err)
		return
	}

	// Persist first, then publish. Holding the mutex across both
	// keeps the document on disk and the served allowlist in step
	// under concurrent PUTs.
	s.allowlistMu.Lock()
	defer s.allowlistMu.Unlock()

	if err := SaveAllowlist(s.config.AllowlistPath, &incoming); err != nil {
		s.logger.Error("allowlist persist failed", "error", err)
		writeError(writer, http.StatusInternalServerError, "persisting allowlist: %v", err)
		return
	}

	published := incoming.Clone()
	published.normalize()
	s.allowlist.Store(published)

	counts := published.Counts()
	s.logger.Info("allowlist replaced",
		"repo_paths", counts.RepoPaths,
		"compose_projects", counts.ComposeProjects,
		"container_names", counts.ContainerNames,
	)
	writeJSON(writer, http.StatusOK, published)
}

func (s *Server) handleExecute(writer http.ResponseWriter, request *http.Request) {
	var operationRequest OperationRequest
	if err := httpx.DecodeJSON(request.Body, &operationRequest); err != nil {
		writeError(writer, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	if err := s.allowlist.Load().Validate(&operationRequest); err != nil {
		s.logger.Warn("operation rejected",
			"operation", operationRequest.Operation,
			"error", err,
		)
		s.writeValidationError(writer, err)
		return
	}

	result, err := s.executor.Execute(request.Context(), &operationRequest)
	if err != nil {
		s.writeValidationError(writer, err)
		return
	}
	writeJSON(writer, http.StatusOK, result)
}

func (s *Server) handleShell(writer http.ResponseWriter, request *http.Request) {
	var shellRequest ShellRequest
	if err := httpx.DecodeJSON(request.Body, &shellRequest); err != nil {
		writeError(writer, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	result, err := s.shell.Run(request.Context(), shellRequest)
	if err != nil {
		var blocked *BlockedError
		if errors.As(err, &blocked) {
			writeError(writer, http.StatusForbidden, "%s", blocked)
			return
		}
		s.writeValidationError(writer, err)
		return
	}
	writeJSON(writer, http.StatusOK, result)
}

func (s *Server) writeValidationError(writer http.ResponseWriter, err error) {
	var validationError *ValidationError
	if errors.As(err, &validationError) {
		status := http.StatusBadRequest
		if validationError.Kind == ValidationNotAllowlisted {
			status = http.StatusForbidden
		}
		writeError(writer, status, "%s", validationError)
		return
	}
	writeError(writer, http.StatusInternalServerError, "%s", err)
}

// --- response helpers ---

func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(payload)
}

func writeError(writer http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(writer, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}
