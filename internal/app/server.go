package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/drivesync/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/drivesync/internal/api/middlewares"
	"github.com/markdave123-py/drivesync/internal/config"
	"github.com/markdave123-py/drivesync/internal/core/logging"
	"github.com/markdave123-py/drivesync/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewRouter wires the status API routes.
func NewRouter(cfg *config.Config, files *services.FileService) http.Handler {
	fileHandler := handlers.NewFileHandler(files)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", handlers.Health)

	r.Route("/api", func(api chi.Router) {
		api.Use(appMiddleware.NewJWTMiddleware(cfg.JWTSecret))

		api.Get("/files", fileHandler.ListFiles)
		api.Get("/files/{id}", fileHandler.GetFile)
		api.Post("/files/{id}/ignore", fileHandler.SetIgnore)
		api.Post("/files/{id}/retry", fileHandler.RetryFile)
		api.Get("/runs/latest", fileHandler.LatestRun)
	})

	return r
}

// NewServer builds the HTTP server for the status API.
func NewServer(cfg *config.Config, files *services.FileService) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, files),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	logging.Logger().Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Logger().Info("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
