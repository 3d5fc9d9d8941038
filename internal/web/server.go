// Package web implements the HTTP surface: login, chunk listing and deletion,
// and range-capable audio streaming.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recvault/internal/auth"
	"recvault/internal/config"
	"recvault/internal/metrics"
	"recvault/internal/registry"
)

// Server is the HTTP server for the recordings API.
type Server struct {
	cfg      config.ServerConfig
	mux      *http.ServeMux
	store    registry.Store
	query    *registry.QueryService
	deleter  *registry.DeletionService
	sessions *auth.SessionManager
	discord  *auth.DiscordClient
	clock    registry.Clock
	logger   registry.Logger
	metrics  *metrics.Metrics
	server   *http.Server
}

// NewServer creates the HTTP server and wires its routes.
// gatherer serves the /metrics endpoint; metrics instruments handlers.
func NewServer(
	cfg config.ServerConfig,
	store registry.Store,
	query *registry.QueryService,
	deleter *registry.DeletionService,
	sessions *auth.SessionManager,
	discord *auth.DiscordClient,
	clock registry.Clock,
	logger registry.Logger,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) *Server {
	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		store:    store,
		query:    query,
		deleter:  deleter,
		sessions: sessions,
		discord:  discord,
		clock:    clock,
		logger:   logger,
		metrics:  m,
	}

	s.setupRoutes(gatherer)

	s.server = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.mux,
		// No WriteTimeout: audio streams legitimately run for minutes. The
		// copy loop stops as soon as the client goes away.
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.mux.HandleFunc("GET /health", s.withMetrics("/health", s.handleHealth))
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.mux.HandleFunc("GET /auth/login", s.withMetrics("/auth/login", s.handleLogin))
	s.mux.HandleFunc("GET /auth/callback", s.withMetrics("/auth/callback", s.handleCallback))
	s.mux.HandleFunc("GET /auth/logout", s.withMetrics("/auth/logout", s.handleLogout))

	s.mux.HandleFunc("GET /api/me", s.withMetrics("/api/me", s.withUser(s.handleMe)))

	s.mux.HandleFunc("GET /api/chunks/{user_id}",
		s.withMetrics("/api/chunks/{user_id}", s.withOwner(s.handleListChunks)))
	s.mux.HandleFunc("DELETE /api/chunks/{user_id}/{date}/{filename}",
		s.withMetrics("/api/chunks/{user_id}/{date}/{filename}", s.withOwner(s.handleDeleteChunk)))

	s.mux.HandleFunc("GET /api/recordings/{user_id}",
		s.withMetrics("/api/recordings/{user_id}", s.withOwner(s.handleListRecordings)))
	s.mux.HandleFunc("DELETE /api/recordings/{user_id}/{filename}",
		s.withMetrics("/api/recordings/{user_id}/{filename}", s.withOwner(s.handleDeleteRecording)))

	s.mux.HandleFunc("GET /audio/{user_id}/chunks/{date}/{filename}",
		s.withMetrics("/audio/{user_id}/chunks/{date}/{filename}", s.withOwner(s.handleChunkAudio)))
	s.mux.HandleFunc("GET /audio/{user_id}/recordings/{filename}",
		s.withMetrics("/audio/{user_id}/recordings/{filename}", s.withOwner(s.handleRecordingAudio)))
}

// ServeHTTP makes the server usable directly in tests via httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// ownerHandler is a handler that has passed authentication and the
// path-owner check.
type ownerHandler func(w http.ResponseWriter, r *http.Request, id *auth.Identity)

// withUser rejects requests without a valid session.
func (s *Server) withUser(next ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := s.sessions.IdentityFromRequest(r)
		if id == nil {
			s.jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next(w, r, id)
	}
}

// withOwner additionally requires the session identity to match the path's
// {user_id}. The mismatch answer is 403 on every endpoint; 404 is reserved
// for resources missing under the caller's own identity.
func (s *Server) withOwner(next ownerHandler) http.HandlerFunc {
	return s.withUser(func(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
		if r.PathValue("user_id") != id.UserID {
			s.jsonError(w, "forbidden", http.StatusForbidden)
			return
		}
		next(w, r, id)
	})
}

// withMetrics wraps a handler with request counting and latency observation.
func (s *Server) withMetrics(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	if s.metrics == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next(ww, r)

		s.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", ww.status), time.Since(start).Seconds())
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// writeJSON writes v as a JSON response body.
func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes an error response as JSON.
func (s *Server) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// validSegment rejects path segments that could traverse outside the
// expected directory. Checked before any index or filesystem access.
func validSegment(seg string) bool {
	if seg == "" || seg == "." || seg == ".." {
		return false
	}
	if strings.ContainsAny(seg, "/\\") || strings.Contains(seg, "..") {
		return false
	}
	return true
}
