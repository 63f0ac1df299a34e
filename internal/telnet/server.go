// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package telnet

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// Server is the telnet accept loop.
type Server struct {
	addr     string
	deps     Deps
	listener net.Listener
	mu       sync.RWMutex
}

// NewServer creates a new telnet server.
func NewServer(addr string, deps Deps) *Server {
	return &Server{
		addr: addr,
		deps: deps,
	}
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run starts the server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	slog.Info("telnet server started", "addr", listener.Addr())

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			slog.Debug("error closing listener", "error", err)
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Error("accept failed", "error", err)
				continue
			}
		}
		handler := NewConnHandler(conn, s.deps)
		go handler.Handle(ctx)
	}
}
