// Package server provides the HTTP REST API for the course illustrator.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/course-illustrator/internal/ban"
	"github.com/jonathan/course-illustrator/internal/db"
	"github.com/jonathan/course-illustrator/internal/preload"
	"github.com/jonathan/course-illustrator/internal/resolver"
	"github.com/jonathan/course-illustrator/internal/session"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	resolver   *resolver.Resolver
	preloader  *preload.Preloader
	sessions   *session.Store
	bans       *ban.Registry
	db         *db.DB
	verbose    bool
}

// Config holds server configuration
type Config struct {
	Port      int
	Resolver  *resolver.Resolver
	Preloader *preload.Preloader
	Sessions  *session.Store
	Bans      *ban.Registry
	DB        *db.DB // optional; nil runs memory-only
	Verbose   bool
}

// New creates a new server instance
func New(cfg Config) *Server {
	s := &Server{
		resolver:  cfg.Resolver,
		preloader: cfg.Preloader,
		sessions:  cfg.Sessions,
		bans:      cfg.Bans,
		db:        cfg.DB,
		verbose:   cfg.Verbose,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Resolution may hit slow providers
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler builds the routed handler with middleware applied. Exposed so tests
// can drive the API without a listening socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/resolve", s.handleResolve)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/stats", s.handleSessionStats)
	mux.HandleFunc("POST /api/quiz-scores", s.handleSaveQuizScore)
	mux.HandleFunc("GET /api/quiz-scores", s.handleGetQuizScore)
	mux.HandleFunc("POST /api/progress", s.handleUpdateProgress)
	mux.HandleFunc("GET /api/progress", s.handleGetProgress)

	mux.HandleFunc("POST /api/admin/bans", s.handleCreateBan)
	mux.HandleFunc("GET /api/admin/bans", s.handleListBans)
	mux.HandleFunc("POST /api/admin/purge", s.handlePurge)

	mux.HandleFunc("GET /health", s.handleHealth)

	return s.withLogging(s.withCORS(mux))
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stop background sweepers
	s.resolver.Stop()
	s.preloader.Stop()
	s.sessions.Stop()

	if s.db != nil {
		s.db.Close()
	}
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if s.verbose {
			log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		}
		next.ServeHTTP(w, r)
		if s.verbose {
			log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
		}
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
