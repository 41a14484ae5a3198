package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/wonny/dipscreener/pkg/config"
	"github.com/wonny/dipscreener/pkg/logger"
)

// Server serves the funnel API until its context is cancelled
// ⭐ SSOT: API listener and timeouts are applied here only
type Server struct {
	httpServer *http.Server
	settings   config.ServerConfig
	logger     *logger.Logger
}

// New creates a server for addr (host:port, ":0" picks a free port)
func New(addr string, settings config.ServerConfig, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  settings.ReadTimeout,
			WriteTimeout: settings.WriteTimeout,
			IdleTimeout:  settings.IdleTimeout,
		},
		settings: settings,
		logger:   log.WithField("module", "api"),
	}
}

// Listen binds the configured address. The returned listener reports the
// actual port, which differs from the configured one for ":0".
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return ln, nil
}

// Serve answers requests on ln until ctx is cancelled. In-flight requests
// then get ShutdownTimeout to finish before the server gives up on them.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.WithField("addr", ln.Addr().String()).Info("Starting API server")

	served := make(chan error, 1)
	go func() { served <- s.httpServer.Serve(ln) }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve api: %w", err)
	case <-ctx.Done():
	}

	s.logger.WithField("timeout", s.settings.ShutdownTimeout.String()).Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.settings.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api: %w", err)
	}
	<-served
	return nil
}
