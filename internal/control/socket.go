// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

// Package control provides an HTTP control socket for process management
// and operator actions.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/embermush/embermush/internal/xdg"
)

// ErrUnknownPrincipal is returned by a RemoveUserFunc when the named
// principal does not exist. The handler maps it to 404.
var ErrUnknownPrincipal = errors.New("unknown principal")

// HealthResponse is returned by the /health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// StatusResponse is returned by the /status endpoint.
type StatusResponse struct {
	Running       bool   `json:"running"`
	PID           int    `json:"pid"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Component     string `json:"component,omitempty"`
}

// ShutdownResponse is returned by the /shutdown endpoint.
type ShutdownResponse struct {
	Message string `json:"message"`
}

// ReloadResponse is returned by the /reload endpoint.
type ReloadResponse struct {
	Message string `json:"message"`
}

// RemoveUserRequest is the body of a /remove-user request.
type RemoveUserRequest struct {
	Name string `json:"name"`
}

// RemoveUserResponse is returned by the /remove-user endpoint.
type RemoveUserResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is returned when an operator action fails.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ShutdownFunc is called when shutdown is requested.
type ShutdownFunc func()

// ReloadFunc is called when a config reload is requested.
type ReloadFunc func() error

// RemoveUserFunc is called when an operator removes a principal's
// two-factor enrollment. Returns ErrUnknownPrincipal for unknown names.
type RemoveUserFunc func(ctx context.Context, name string) error

// Hooks are the operator actions the control socket can trigger.
type Hooks struct {
	Shutdown   ShutdownFunc
	Reload     ReloadFunc
	RemoveUser RemoveUserFunc
}

// Server runs HTTP over a Unix socket for process management.
type Server struct {
	component  string
	startTime  time.Time
	listener   net.Listener
	httpServer *http.Server
	socketPath string
	hooks      Hooks
	running    atomic.Bool
}

// NewServer creates a new control socket server.
// component is the name of the process (e.g., "serve").
func NewServer(component string, hooks Hooks) *Server {
	s := &Server{
		component: component,
		startTime: time.Now(),
		hooks:     hooks,
	}
	s.running.Store(true)
	return s
}

// SocketPath returns the path to the Unix socket for a component.
func SocketPath(component string) string {
	return filepath.Join(xdg.RuntimeDir(), fmt.Sprintf("embermush-%s.sock", component))
}

// SetSocketPath overrides the default XDG-derived socket path. Must be
// called before Start.
func (s *Server) SetSocketPath(path string) {
	s.socketPath = path
}

// Start begins listening on the Unix socket.
func (s *Server) Start() error {
	socketPath := s.socketPath
	if socketPath == "" {
		socketPath = SocketPath(s.component)
	}
	s.socketPath = socketPath

	// Ensure runtime directory exists
	runtimeDir := filepath.Dir(socketPath)
	if err := xdg.EnsureDir(runtimeDir); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}

	// Remove existing socket file if present
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions to owner-only
	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /shutdown", s.handleShutdown)
	mux.HandleFunc("POST /reload", s.handleReload)
	mux.HandleFunc("POST /remove-user", s.handleRemoveUser)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("control socket server error",
				"component", s.component,
				"error", err,
			)
		}
	}()

	return nil
}

// Stop gracefully shuts down the control socket server.
func (s *Server) Stop(ctx context.Context) error {
	s.running.Store(false)

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown http server: %w", err)
		}
	}

	// Close listener if httpServer didn't handle it
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Warn("failed to close control socket listener",
				"component", s.component,
				"error", err,
			)
		}
	}

	// Clean up socket file
	if s.socketPath != "" {
		if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove control socket file",
				"component", s.component,
				"path", s.socketPath,
				"error", err,
			)
		}
	}

	return nil
}

// handleHealth returns health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		slog.Error("failed to write health response",
			"component", s.component,
			"error", err,
		)
	}
}

// handleStatus returns running status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Running:       s.running.Load(),
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Component:     s.component,
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		slog.Error("failed to write status response",
			"component", s.component,
			"error", err,
		)
	}
}

// handleShutdown initiates graceful shutdown.
func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	resp := ShutdownResponse{
		Message: "shutdown initiated",
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		slog.Error("failed to write shutdown response",
			"component", s.component,
			"error", err,
		)
	}

	// Trigger shutdown asynchronously
	if s.hooks.Shutdown != nil {
		go s.hooks.Shutdown()
	}
}

// handleReload re-reads the configuration.
func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	if s.hooks.Reload == nil {
		s.writeError(w, http.StatusNotImplemented, "reload not supported")
		return
	}

	if err := s.hooks.Reload(); err != nil {
		slog.Error("config reload failed",
			"component", s.component,
			"error", err,
		)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("config reloaded", "component", s.component)
	if err := writeJSON(w, http.StatusOK, ReloadResponse{Message: "config reloaded"}); err != nil {
		slog.Error("failed to write reload response",
			"component", s.component,
			"error", err,
		)
	}
}

// handleRemoveUser wipes a principal's two-factor enrollment.
func (s *Server) handleRemoveUser(w http.ResponseWriter, r *http.Request) {
	if s.hooks.RemoveUser == nil {
		s.writeError(w, http.StatusNotImplemented, "remove-user not supported")
		return
	}

	var req RemoveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := s.hooks.RemoveUser(r.Context(), req.Name); err != nil {
		if errors.Is(err, ErrUnknownPrincipal) {
			s.writeError(w, http.StatusNotFound, "unknown principal: "+req.Name)
			return
		}
		slog.Error("remove-user failed",
			"component", s.component,
			"name", req.Name,
			"error", err,
		)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("two-factor enrollment removed",
		"component", s.component,
		"name", req.Name,
	)
	if err := writeJSON(w, http.StatusOK, RemoveUserResponse{Message: "enrollment removed for " + req.Name}); err != nil {
		slog.Error("failed to write remove-user response",
			"component", s.component,
			"error", err,
		)
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, msg string) {
	if err := writeJSON(w, statusCode, ErrorResponse{Error: msg}); err != nil {
		slog.Error("failed to write error response",
			"component", s.component,
			"error", err,
		)
	}
}

// writeJSON writes a JSON response with the given status code.
// Returns an error if JSON encoding fails.
func writeJSON(w http.ResponseWriter, statusCode int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}
