// Package api serves the design service over HTTP as JSON.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gsdesign/app"
	"gsdesign/internal"
	"gsdesign/internal/config"
	apperrors "gsdesign/internal/errors"
)

// maxBodyBytes caps request bodies; sweeps of a few thousand scenarios fit.
const maxBodyBytes = 8 << 20

// Server routes HTTP requests to the design service
type Server struct {
	service *app.DesignService
	config  config.ServerConfig
	router  *chi.Mux
	logger  *internal.Logger
}

// NewServer creates the API server and its routes
func NewServer(service *app.DesignService, cfg config.ServerConfig) *Server {
	s := &Server{
		service: service,
		config:  cfg,
		router:  chi.NewRouter(),
		logger:  internal.DefaultLogger.Named("api"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures HTTP middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, apperrors.NotFound("route "+r.URL.Path))
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/designs", s.handleCreateDesign)
		r.Get("/designs", s.handleListDesigns)
		r.Get("/designs/{id}", s.handleGetDesign)
		r.Get("/designs/{id}/revisions", s.handleRevisions)
		r.Post("/designs/{id}/update", s.handleUpdateDesign)
		r.Post("/designs/{id}/conditional-power", s.handleConditionalPower)
		r.Post("/designs/{id}/predictive-power", s.handlePredictivePower)
		r.Post("/sweeps", s.handleSweep)
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
