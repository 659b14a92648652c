package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mnaflow/crm-guard/internal/common/logging"
	"github.com/mnaflow/crm-guard/internal/security"
)

// Server exposes /metrics, /healthz and /livez, plus the /v1 guard API
// when a guard is attached
type Server struct {
	addr     string
	health   *HealthChecker
	guard    *security.ActionGuard
	apiToken string
	logger   *logging.Logger
}

// NewServer creates the operations server
func NewServer(addr string, health *HealthChecker, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.New("server", logging.LevelInfo)
	}
	return &Server{addr: addr, health: health, logger: logger}
}

// WithGuard attaches the guard API. A non-empty token is required as a
// bearer token on every /v1 request.
func (s *Server) WithGuard(guard *security.ActionGuard, token string) *Server {
	s.guard = guard
	s.apiToken = token
	return s
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.guard != nil {
		s.registerGuardRoutes(mux)
	}
	return mux
}

// handleHealth reports 503 while degraded; problems name keys, never values
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := s.health.Status()

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.ErrorKV("Failed to encode health status", "error", err)
	}
}

// Run serves until ctx is cancelled, then shuts down within shutdownTimeout
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.logger.InfoKV("Starting operations server", "addr", s.addr)

	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("failed to start operations server: %w", err)
		} else {
			errChan <- nil
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.ErrorKV("Operations server shutdown error", "error", err)
			return fmt.Errorf("operations server shutdown failed: %w", err)
		}
		<-errChan
		s.logger.Info("Operations server stopped")
		return nil
	case err := <-errChan:
		if err != nil {
			s.logger.ErrorKV("Operations server failed", "error", err)
			return err
		}
		return nil
	}
}
