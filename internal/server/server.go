// Package server exposes check-run state over HTTP.
//
// The status server is read-only: it serves health, version, and the
// run registry (including the JSONL report of any recorded run). It is
// meant to run next to cron-driven checks so operators can see batch
// state without shelling into the submit host.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/boostedhh/condorcheck/internal/config"
	apperrors "github.com/boostedhh/condorcheck/internal/errors"
	"github.com/boostedhh/condorcheck/pkg/runlog"
)

// Server serves the read-only status API.
type Server struct {
	cfg    config.ServerConfig
	store  *runlog.Store
	logger *zap.Logger
	router chi.Router

	version string
}

// New builds a Server over the given run registry.
// A nil logger disables server logging.
func New(cfg config.ServerConfig, store *runlog.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
	s.router = s.routes()
	return s
}

// SetVersion sets the version string reported by /version.
func (s *Server) SetVersion(version string) {
	s.version = version
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.cfg.Port
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Start runs the server until the context is cancelled, then shuts
// down gracefully within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("status server shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.recoverer)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteHTTPError(w, req, http.StatusNotFound, apperrors.CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteHTTPError(w, req, http.StatusMethodNotAllowed, apperrors.CodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Get("/health/live", s.handleHealth)
	r.Get("/health/ready", s.handleHealth)
	r.Get("/version", s.handleVersion)

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleRuns)
		r.Get("/latest", s.handleLatestRun)
		r.Get("/{runID}", s.handleRun)
		r.Get("/{runID}/report", s.handleRunReport)
	})

	return r
}

// recoverer converts handler panics into JSON 500 responses.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic",
					zap.Any("panic", rec),
					zap.String("path", req.URL.Path))
				apperrors.WriteHTTPError(w, req, http.StatusInternalServerError,
					apperrors.CodeInternal, fmt.Sprintf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, req)
	})
}

// versionResponse is the /version payload.
type versionResponse struct {
	Version string    `json:"version"`
	Now     time.Time `json:"now"`
}
