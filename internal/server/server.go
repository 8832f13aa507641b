// Package server hosts the HTTP scaffold: router, middleware chain and the
// placeholder user resource.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/groundworklabs/groundwork/internal/config"
)

// Server runs the HTTP listener with graceful shutdown.
type Server struct {
	httpServer *http.Server
	grace      config.ServerConfig
	logger     *slog.Logger
}

// New builds a server around the handler using timeouts from cfg.
func New(cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout(),
			WriteTimeout: cfg.WriteTimeout(),
		},
		grace:  cfg,
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully within the
// configured grace period. It returns once the listener has stopped.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "grace", s.grace.ShutdownGrace())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.grace.ShutdownGrace())
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
