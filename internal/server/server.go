// Package server exposes the index over HTTP: status, search (JSON and
// rendered HTML), sync triggering, and a WebSocket stream of sync progress.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zotseek/zotseek/internal/fingerprint"
	"github.com/zotseek/zotseek/internal/indexer"
	"github.com/zotseek/zotseek/internal/search"
	"github.com/zotseek/zotseek/internal/vectordb"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// Server is the HTTP front end over the search index.
type Server struct {
	cfg          Config
	searcher     *search.Engine
	syncer       *indexer.Engine
	store        vectordb.VectorStore
	fingerprints *fingerprint.Store
	states       *indexer.StateStore
	hub          *progressHub
	router       chi.Router
	httpServer   *http.Server
}

// New creates a new server with all dependencies.
func New(cfg Config, searcher *search.Engine, syncer *indexer.Engine, store vectordb.VectorStore, fingerprints *fingerprint.Store, states *indexer.StateStore) *Server {
	s := &Server{
		cfg:          cfg,
		searcher:     searcher,
		syncer:       syncer,
		store:        store,
		fingerprints: fingerprints,
		states:       states,
		hub:          newProgressHub(),
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/search", s.handleSearch)
		r.Post("/sync", s.handleSync)
	})
	r.Get("/ws/sync", s.handleSyncSocket)

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// ProgressFunc returns the sync progress callback that feeds the
// WebSocket stream. Install it on the sync engine before starting.
func (s *Server) ProgressFunc() indexer.ProgressFunc {
	return s.hub.progressFunc()
}

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("zotseek server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.close()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
