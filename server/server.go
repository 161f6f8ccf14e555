// Package server exposes the job pipeline over an HTTP JSON API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/anuraag-saini/fireqsp-share-sub000/extraction"
	"github.com/anuraag-saini/fireqsp-share-sub000/pipeline"
	"github.com/anuraag-saini/fireqsp-share-sub000/storage"
)

// JobRunner starts one job end to end. The orchestrator implements it; tests
// substitute their own.
type JobRunner interface {
	RunJob(ctx context.Context, jobID, ownerID string, fileCount int) *pipeline.RunResult
}

// Server serves the FireQSP API.
type Server struct {
	manager        *pipeline.Manager
	runner         JobRunner
	extractions    *extraction.Store
	objects        storage.ObjectStore
	logger         *zap.SugaredLogger
	allowedOrigins []string

	httpServer *http.Server
}

// New creates a server. allowedOrigins configures CORS for the dashboard.
func New(
	manager *pipeline.Manager,
	runner JobRunner,
	extractions *extraction.Store,
	objects storage.ObjectStore,
	allowedOrigins []string,
	logger *zap.SugaredLogger,
) *Server {
	return &Server{
		manager:        manager,
		runner:         runner,
		extractions:    extractions,
		objects:        objects,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
}

// Routes returns the API handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/jobs", s.corsMiddleware(s.HandleJobs))
	mux.HandleFunc("/api/jobs/", s.corsMiddleware(s.HandleJob))
	mux.HandleFunc("/api/extractions/", s.corsMiddleware(s.HandleExtraction))
	mux.HandleFunc("/api/status", s.corsMiddleware(s.HandleStatus))

	return mux
}

// Start begins serving on the given port and blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infow("API server listening", "port", port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Infow("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}
