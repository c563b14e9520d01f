// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package httpapi

import (
	"context"
	"crypto/rsa"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/libretto/libretto/internal/auth"
	"github.com/libretto/libretto/internal/catalog"
	"github.com/libretto/libretto/internal/observability"
)

// ServerConfig carries the dependencies for the API server.
type ServerConfig struct {
	Addr            string
	Logger          *slog.Logger
	Auth            *auth.Service
	Users           auth.UserRepository
	Books           catalog.BookRepository
	Genres          catalog.GenreRepository
	Registry        auth.SessionRegistry
	Cache           *Cache
	Metrics         *observability.Metrics
	AccessPublicKey *rsa.PublicKey
}

// Server serves the REST API.
type Server struct {
	addr            string
	logger          *slog.Logger
	auth            *auth.Service
	users           auth.UserRepository
	books           catalog.BookRepository
	genres          catalog.GenreRepository
	registry        auth.SessionRegistry
	cache           *Cache
	metrics         *observability.Metrics
	accessPublicKey *rsa.PublicKey

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates an API server from its dependencies.
func NewServer(cfg ServerConfig) (*Server, error) {
	errb := oops.Code("HTTP_INIT_FAILED")
	if cfg.Auth == nil {
		return nil, errb.Errorf("auth service is required")
	}
	if cfg.Users == nil || cfg.Books == nil || cfg.Genres == nil {
		return nil, errb.Errorf("repositories are required")
	}
	if cfg.Registry == nil {
		return nil, errb.Errorf("session registry is required")
	}
	if cfg.AccessPublicKey == nil {
		return nil, errb.Errorf("access public key is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		addr:            cfg.Addr,
		logger:          logger,
		auth:            cfg.Auth,
		users:           cfg.Users,
		books:           cfg.Books,
		genres:          cfg.Genres,
		registry:        cfg.Registry,
		cache:           cfg.Cache,
		metrics:         cfg.Metrics,
		accessPublicKey: cfg.AccessPublicKey,
	}, nil
}

// Handler builds the route table. Role sets are data on the routes, not
// separate middleware variants.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/user/register/{$}", s.handleRegister)
	mux.HandleFunc("POST /api/v1/user/login/{$}", s.handleLogin)
	mux.Handle("POST /api/v1/user/logout/{$}",
		s.authenticate()(http.HandlerFunc(s.handleLogout)))

	mutators := []auth.Role{auth.RoleAuthor, auth.RoleWorker, auth.RoleAdmin}

	mux.HandleFunc("GET /api/v1/book", s.handleListBooks)
	mux.HandleFunc("GET /api/v1/book/{id}", s.handleGetBook)
	mux.Handle("POST /api/v1/book/create/{$}",
		s.authenticate(mutators...)(http.HandlerFunc(s.handleCreateBook)))
	mux.Handle("PATCH /api/v1/book/update/{id}/{$}",
		s.authenticate(mutators...)(http.HandlerFunc(s.handleUpdateBook)))
	mux.Handle("DELETE /api/v1/book/delete/{id}/{$}",
		s.authenticate(mutators...)(http.HandlerFunc(s.handleDeleteBook)))

	mux.HandleFunc("GET /api/v1/book/genres", s.handleListGenres)
	mux.Handle("POST /api/v1/book/genres/create/{$}",
		s.authenticate(auth.RoleAdmin)(http.HandlerFunc(s.handleCreateGenre)))

	return chain(mux, s.withRequestID, s.withAccessLog)
}

// Start begins serving the API. It returns an error channel that
// receives any error from the HTTP server after startup; the channel is
// closed on graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the listen address, or "" when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
