// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FuseForge Contributors

// Package server exposes the game API over HTTP.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/fuseforge/fuseforge/internal/auth"
	"github.com/fuseforge/fuseforge/internal/catalog"
	"github.com/fuseforge/fuseforge/internal/collection"
	"github.com/fuseforge/fuseforge/internal/fusion"
	"github.com/fuseforge/fuseforge/internal/ledger"
	"github.com/fuseforge/fuseforge/internal/observability"
	"github.com/fuseforge/fuseforge/internal/payment"
)

// Deps bundles the services the API serves.
type Deps struct {
	Directory *auth.Directory
	Tokens    *auth.TokenIssuer
	Saves     *collection.Store
	Ledger    *ledger.Service
	Templates catalog.TemplateRepository
	Fusions   *fusion.Coordinator
	Payments  *payment.Service
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Server is the game API HTTP server.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool

	directory *auth.Directory
	tokens    *auth.TokenIssuer
	saves     *collection.Store
	ledger    *ledger.Service
	templates catalog.TemplateRepository
	fusions   *fusion.Coordinator
	payments  *payment.Service
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewServer creates the game API server. Metrics may be nil.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Directory == nil || deps.Tokens == nil || deps.Saves == nil ||
		deps.Ledger == nil || deps.Templates == nil || deps.Fusions == nil ||
		deps.Payments == nil || deps.Logger == nil {
		return nil, oops.Errorf("all dependencies except metrics are required")
	}
	return &Server{
		addr:      addr,
		directory: deps.Directory,
		tokens:    deps.Tokens,
		saves:     deps.Saves,
		ledger:    deps.Ledger,
		templates: deps.Templates,
		fusions:   deps.Fusions,
		payments:  deps.Payments,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, instrument(s.metrics, name, h))
	}

	route("POST /register", "register", s.handleRegister)
	route("POST /login", "login", s.handleLogin)
	route("GET /save", "save_get", s.requireSession(s.handleGetSave))
	route("PUT /save", "save_put", s.requireSession(s.handlePutSave))
	route("GET /characters", "characters", s.requireSession(s.handleCharacters))
	route("POST /fuse", "fuse", s.requireSession(s.handleFuse))
	route("POST /payments/confirm", "payment_confirm", s.requireSession(s.handlePaymentConfirm))
	route("GET /balance", "balance", s.requireSession(s.handleBalance))

	return mux
}

// Start begins serving the game API. The returned channel reports a
// serve failure and closes on graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("game API server already running")
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
			s.logger.Error("game API server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("game API server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_game_api").Wrap(err)
		}
	}
	s.logger.Info("game API server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" when idle.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
