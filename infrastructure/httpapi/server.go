// Package httpapi exposes the collection search operation over a minimal
// chi-based HTTP surface: GET /collections/{name}/search and /healthz.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/collexdb/collex/domain/collection"
)

// CollectionHandle pairs an open collection with the model id its search
// queries should be embedded through.
type CollectionHandle struct {
	Collection *collection.Collection
	ModelID    uint32
}

// Server is the HTTP surface described by the process surface spec: a
// search endpoint per collection and a health check, backed by chi.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	addr       string
}

// NewServer builds a Server wired to the given collections. Write an empty
// apiKeys slice to leave the surface unauthenticated (search/healthz are
// GET-only and always unauthenticated regardless).
func NewServer(addr string, logger *slog.Logger, collections map[string]CollectionHandle, apiKeys []string) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))
	router.Use(WriteProtect(NewAuthConfig(apiKeys)))

	router.Get("/healthz", handleHealthz)

	searchRouter := NewSearchRouter(collections, logger)
	router.Mount("/collections", searchRouter.Routes())

	return &Server{router: router, addr: addr, logger: logger}
}

// Router returns the chi router, for tests that want to drive requests
// directly without starting a listener.
func (s *Server) Router() chi.Router { return s.router }

// Start runs the server until it errors or is shut down.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
