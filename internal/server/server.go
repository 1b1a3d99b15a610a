package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/maximewewer/ntpq-exporter/internal/config"
	"github.com/maximewewer/ntpq-exporter/pkg/logger"
	"github.com/maximewewer/ntpq-exporter/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// shutdownTimeout bounds graceful shutdown
const shutdownTimeout = 10 * time.Second

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	registry *prometheus.Registry
	metrics  *metrics.DaemonMetrics
	health   HealthReporter

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a new HTTP server. health may be nil.
func New(cfg *config.Config, registry *prometheus.Registry, m *metrics.DaemonMetrics, health HealthReporter) *Server {
	return &Server{
		config:   cfg,
		registry: registry,
		metrics:  m,
		health:   health,
	}
}

// Handler returns the routed handler wrapped in middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	handlers := NewHandlers(s.config, s.registry, s.health)

	mux.HandleFunc("/metrics", handlers.MetricsHandler)
	mux.HandleFunc("/health", handlers.HealthHandler)
	mux.HandleFunc("/", handlers.IndexHandler)

	return NewMiddleware(s.config, s.metrics).Apply(mux)
}

// Start serves until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Address, strconv.Itoa(s.config.Server.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("HTTP server failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = listener
	s.mu.Unlock()

	logger.Infof("server", "Starting HTTP server on %s", listener.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("server", "Shutting down HTTP server")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", "Server error", err)
			return fmt.Errorf("HTTP server failed on %s: %w", addr, err)
		}
		return nil
	}
}

// Addr returns the bound listen address, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server", "Server shutdown failed", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("server shutdown timeout after %s: %w", shutdownTimeout, err)
		}
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("server", "HTTP server stopped")
	return nil
}
