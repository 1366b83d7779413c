// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/bureau-foundation/dockhand/gateway"
	"github.com/bureau-foundation/dockhand/lib/clock"
	"github.com/bureau-foundation/dockhand/lib/secret"
	"github.com/bureau-foundation/dockhand/lib/service"
	"github.com/bureau-foundation/dockhand/lib/version"
	"github.com/bureau-foundation/dockhand/logarchive"
	"github.com/bureau-foundation/dockhand/portainer"
)

const serviceName = "dockhand-console"

// GatewayClient is the slice of the gateway API the console consumes.
// *gateway.Client implements it.
type GatewayClient interface {
	Shell(ctx context.Context, command, cwd string) (*gateway.ShellResult, error)
	Allowlist(ctx context.Context) (*gateway.Allowlist, error)
}

// ContainerClient is the slice of the Portainer API the console
// consumes. *portainer.Client implements it.
type ContainerClient interface {
	ListContainers(ctx context.Context) ([]portainer.Container, error)
	ContainerAction(ctx context.Context, containerID string, action portainer.Action) portainer.ActionResult
	ContainerStats(ctx context.Context, containerID string) (*portainer.Stats, error)
	FetchContainerLogs(ctx context.Context, containerID string, tail int) (*portainer.ContainerLogs, error)
}

// Server is the console HTTP API.
type Server struct {
	config     *Config
	logger     *slog.Logger
	clock      clock.Clock
	token      *secret.Buffer
	gateway    GatewayClient
	containers ContainerClient
	archive    *logarchive.Archive

	// ownedSecrets are buffers NewFromConfig loaded on the server's
	// behalf (gateway token, Portainer password, store identity).
	// Closed by Close.
	ownedSecrets []*secret.Buffer

	handler    http.Handler
	httpServer *service.HTTPServer
}

// ServerOptions configures a Server with pre-built dependencies.
// NewFromConfig assembles the real clients; tests inject fakes.
type ServerOptions struct {
	// Config is the validated service configuration. Required.
	Config *Config

	// Logger is the structured logger. Required.
	Logger *slog.Logger

	// Token is the console's own bearer token. Required; the server
	// takes ownership and closes it.
	Token *secret.Buffer

	// Gateway is the execution gateway client. Required.
	Gateway GatewayClient

	// Containers is the container management client. Required.
	Containers ContainerClient

	// Archive is the deploy-log archive. Required; the server takes
	// ownership and closes it.
	Archive *logarchive.Archive

	// Clock defaults to the real clock. Tests inject a fake.
	Clock clock.Clock
}

// NewServer wires the HTTP routes around pre-built dependencies. The
// returned server is not listening yet; call Serve.
func NewServer(options ServerOptions) (*Server, error) {
	if options.Config == nil {
		return nil, errors.New("config is required")
	}
	if options.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if options.Token == nil {
		return nil, errors.New("token is required")
	}
	if options.Gateway == nil {
		return nil, errors.New("gateway client is required")
	}
	if options.Containers == nil {
		return nil, errors.New("container client is required")
	}
	if options.Archive == nil {
		return nil, errors.New("archive is required")
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}

	server := &Server{
		config:     options.Config,
		logger:     options.Logger,
		clock:      clk,
		token:      options.Token,
		gateway:    options.Gateway,
		containers: options.Containers,
		archive:    options.Archive,
	}
	server.handler = server.routes()
	server.httpServer = service.NewHTTPServer(service.HTTPServerConfig{
		Address:         options.Config.ListenAddress,
		Handler:         server.handler,
		ShutdownTimeout: options.Config.ShutdownTimeout(),
		Logger:          options.Logger,
	})
	return server, nil
}

// NewFromConfig assembles a Server from configuration alone: it loads
// the tokens and keys named by the config, builds the gateway and
// Portainer clients and the archive, and creates the deploy-log
// directory.
func NewFromConfig(config *Config, logger *slog.Logger) (*Server, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	var owned []*secret.Buffer
	success := false
	defer func() {
		if !success {
			for _, buffer := range owned {
				buffer.Close()
			}
		}
	}()

	token, err := secret.ReadFromPath(config.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("loading console token: %w", err)
	}
	owned = append(owned, token)

	gatewayToken, err := secret.ReadFromPath(config.Gateway.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("loading gateway token: %w", err)
	}
	owned = append(owned, gatewayToken)

	gatewayClient, err := gateway.NewClient(gateway.ClientOptions{
		BaseURL: config.Gateway.URL,
		Token:   gatewayToken,
	})
	if err != nil {
		return nil, err
	}

	portainerOptions := portainer.ClientOptions{
		BaseURL:    config.Portainer.URL,
		EndpointID: config.Portainer.EndpointID,
		Logger:     logger,
	}
	if config.Portainer.HasCredentials() {
		password, err := secret.ReadFromPath(config.Portainer.PasswordFile)
		if err != nil {
			return nil, fmt.Errorf("loading portainer password: %w", err)
		}
		owned = append(owned, password)
		portainerOptions.Username = config.Portainer.Username
		portainerOptions.Password = password
	}
	if config.Portainer.StaticTokenEnv != "" {
		portainerOptions.StaticToken = os.Getenv(config.Portainer.StaticTokenEnv)
	}
	if config.Portainer.HasTokenStore() {
		identity, err := secret.ReadFromPath(config.Portainer.TokenStore.IdentityFile)
		if err != nil {
			return nil, fmt.Errorf("loading token store identity: %w", err)
		}
		owned = append(owned, identity)
		store, err := portainer.NewTokenStore(portainer.TokenStoreOptions{
			Path:      config.Portainer.TokenStore.Path,
			Identity:  identity,
			Recipient: config.Portainer.TokenStore.Recipient,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		portainerOptions.Store = store
	}
	containerClient, err := portainer.NewClient(portainerOptions)
	if err != nil {
		return nil, err
	}

	archiveKey, err := logarchive.LoadKey(config.Archive.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading archive key: %w", err)
	}
	archive, err := logarchive.Open(logarchive.Options{
		Dir:       config.Archive.Dir,
		IndexPath: config.Archive.IndexPath,
		Key:       archiveKey,
		Logger:    logger,
	})
	if err != nil {
		archiveKey.Close()
		return nil, fmt.Errorf("opening log archive: %w", err)
	}

	if err := os.MkdirAll(config.DeployLogDir, 0755); err != nil {
		archive.Close()
		return nil, fmt.Errorf("creating deploy log directory: %w", err)
	}

	server, err := NewServer(ServerOptions{
		Config:     config,
		Logger:     logger,
		Token:      token,
		Gateway:    gatewayClient,
		Containers: containerClient,
		Archive:    archive,
	})
	if err != nil {
		archive.Close()
		return nil, err
	}

	// The console token is the first owned buffer; it is also the
	// server's token field, so hand over everything after it.
	server.ownedSecrets = owned[1:]
	success = true
	return server, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /containers", s.requireToken(s.handleListContainers))
	mux.HandleFunc("POST /containers/{id}/{action}", s.requireToken(s.handleContainerAction))
	mux.HandleFunc("GET /containers/{id}/stats", s.requireToken(s.handleContainerStats))
	mux.HandleFunc("GET /containers/{id}/logs", s.requireToken(s.handleContainerLogs))
	mux.HandleFunc("GET /archives", s.requireToken(s.handleListArchives))
	mux.HandleFunc("GET /archives/{digest}", s.requireToken(s.handleGetArchive))
	mux.HandleFunc("POST /deploy/start", s.requireToken(s.handleDeployStart))
	mux.HandleFunc("GET /deploy/logs/stream", s.requireToken(s.handleStream))
	return mux
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

// Close releases the archive and every secret the server owns. Call
// after Serve returns.
func (s *Server) Close() error {
	err := s.archive.Close()
	s.token.Close()
	for _, buffer := range s.ownedSecrets {
		buffer.Close()
	}
	return err
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

// --- handlers ---

func (s *Server) handleHealth(writer http.ResponseWriter, _ *http.Request) {
	writeJSON(writer, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: serviceName,
		Version: version.Short(),
	})
}

func (s *Server) handleListContainers(writer http.ResponseWriter, request *http.Request) {
	containers, err := s.containers.ListContainers(request.Context())
	if err != nil {
		s.writeUpstreamError(writer, "listing containers", err)
		return
	}

	views := make([]ContainerView, 0, len(containers))
	for i := range containers {
		views = append(views, containerView(&containers[i]))
	}
	writeJSON(writer, http.StatusOK, views)
}

// handleContainerAction applies a lifecycle verb. The outcome is
// always a 200 with ActionResult: a failed action is a rendered
// result, not a transport error, matching how the gateway reports
// failed operations.
func (s *Server) handleContainerAction(writer http.ResponseWriter, request *http.Request) {
	containerID := request.PathValue("id")
	action := portainer.Action(request.PathValue("action"))
	if !action.Known() {
		writeError(writer, http.StatusBadRequest, "unknown container action %q, expected one of %v", action, portainer.Actions)
		return
	}

	result := s.containers.ContainerAction(request.Context(), containerID, action)
	writeJSON(writer, http.StatusOK, result)
}

func (s *Server) handleContainerStats(writer http.ResponseWriter, request *http.Request) {
	stats, err := s.containers.ContainerStats(request.Context(), request.PathValue("id"))
	if err != nil {
		s.writeUpstreamError(writer, "fetching container stats", err)
		return
	}
	writeJSON(writer, http.StatusOK, stats)
}

func (s *Server) handleContainerLogs(writer http.ResponseWriter, request *http.Request) {
	tail := 0
	if raw := request.URL.Query().Get("tail"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(writer, http.StatusBadRequest, "tail must be a positive integer, got %q", raw)
			return
		}
		tail = parsed
	}

	logs, err := s.containers.FetchContainerLogs(request.Context(), request.PathValue("id"), tail)
	if err != nil {
		s.writeUpstreamError(writer, "fetching container logs", err)
		return
	}
	writeJSON(writer, http.StatusOK, logs)
}

func (s *Server) handleListArchives(writer http.ResponseWriter, request *http.Request) {
	limit := 0
	if raw := request.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(writer, http.StatusBadRequest, "limit must be a positive integer, got %q", raw)
			return
		}
		limit = parsed
	}

	records, err := s.archive.List(request.Context(), limit)
	if err != nil {
		s.logger.Error("archive list failed", "error", err)
		writeError(writer, http.StatusInternalServerError, "listing archives: %v", err)
		return
	}
	if records == nil {
		records = []logarchive.ArchiveRecord{}
	}
	writeJSON(writer, http.StatusOK, ArchiveListResponse{Archives: records})
}

func (s *Server) handleGetArchive(writer http.ResponseWriter, request *http.Request) {
	content, record, err := s.archive.Open(request.Context(), request.PathValue("digest"))
	if err != nil {
		var corrupt *logarchive.CorruptBlobError
		switch {
		case errors.Is(err, logarchive.ErrBadDigest):
			writeError(writer, http.StatusBadRequest, "%v", err)
		case errors.Is(err, logarchive.ErrNotFound):
			writeError(writer, http.StatusNotFound, "no archive with digest %s", request.PathValue("digest"))
		case errors.As(err, &corrupt):
			s.logger.Error("archive blob corrupt", "digest", corrupt.Digest, "reason", corrupt.Reason)
			writeError(writer, http.StatusInternalServerError, "%v", err)
		default:
			s.logger.Error("archive read failed", "error", err)
			writeError(writer, http.StatusInternalServerError, "reading archive: %v", err)
		}
		return
	}

	writeJSON(writer, http.StatusOK, ArchiveContentResponse{
		ArchiveRecord: record,
		Content:       string(content),
	})
}

// writeUpstreamError maps client errors from the container management
// API to response codes: misconfiguration is the console's fault
// (500), everything else is a bad gateway (502).
func (s *Server) writeUpstreamError(writer http.ResponseWriter, action string, err error) {
	s.logger.Warn("upstream request failed", "action", action, "error", err)

	var configError *portainer.ConfigError
	if errors.As(err, &configError) || errors.Is(err, portainer.ErrNoTokenAvailable) {
		writeError(writer, http.StatusInternalServerError, "%s: %v", action, err)
		return
	}
	writeError(writer, http.StatusBadGateway, "%s: %v", action, err)
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
