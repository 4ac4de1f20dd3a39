// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

// Package api provides HTTP query API over anchor resolution and reply threads.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BoostyLabs/anchor/bitcoin/anchor/resolver"
)

// shutdownTimeout defines how long in-flight requests are awaited on shutdown.
const shutdownTimeout = 5 * time.Second

// ErrResolverRequired defines that server is created without resolver.
var ErrResolverRequired = errors.New("api: resolver is required")

// Server serves query API.
type Server struct {
	listen   string
	resolver *resolver.Resolver
	logger   *slog.Logger
	router   *gin.Engine
}

// NewServer is a constructor for Server.
func NewServer(listen string, res *resolver.Resolver, logger *slog.Logger) (*Server, error) {
	if res == nil {
		return nil, ErrResolverRequired
	}
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		listen:   listen,
		resolver: res,
		logger:   logger,
		router:   router,
	}
	s.registerRoutes()

	return s, nil
}

// Handler returns HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", s.listen, err)
	}

	return s.Serve(ctx, listener)
}

// Serve serves API on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: %w", err)
	}
	if err := <-done; err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}

	s.logger.Info("api server stopped")
	return nil
}
