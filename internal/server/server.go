// Package server owns the HTTP listener lifecycle, adapted from the
// teacher's internal/server package: the same graceful-shutdown Run loop,
// generalized to gallerysrv's two listeners (the gallery surface and the
// separate Prometheus exposition listener named in spec §6).
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Server owns one HTTP listener's lifecycle and orchestrates graceful
// shutdown.
type Server struct {
	name       string
	logger     *slog.Logger
	httpServer *http.Server
	once       sync.Once
}

// New equips a named listener at address:port with handler.
func New(name, address string, port int, logger *slog.Logger, handler http.Handler) (*Server, error) {
	if handler == nil {
		return nil, errors.New("server: handler required")
	}

	addr := net.JoinHostPort(address, strconv.Itoa(port))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		name:       name,
		logger:     logger.With(slog.String("listener", name)),
		httpServer: httpSrv,
	}, nil
}

// Run keeps the listener active until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("http listener starting", slog.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: %s: listen: %w", s.name, err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) shutdown(ctx context.Context) error {
	var shutdownErr error
	s.once.Do(func() {
		s.logger.Info("http listener shutting down")
		shutdownErr = s.httpServer.Shutdown(ctx)
	})
	return shutdownErr
}
