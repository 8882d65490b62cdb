package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the health check, Prometheus metrics and the overlay socket.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// New creates a server. overlay may be nil when no overlay is wired.
func New(addr string, overlay http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: Routes(overlay),
		},
		logger: logger,
	}
}

// Routes builds the request mux.
func Routes(overlay http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	if overlay != nil {
		mux.Handle("/overlay", overlay)
	}

	return mux
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
