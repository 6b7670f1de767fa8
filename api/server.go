// Package api exposes the JSON HTTP surface: auth routes and the
// bearer-authenticated link routes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zombar/linkstash/auth"
	"github.com/zombar/linkstash/db"
	"github.com/zombar/linkstash/metrics"
	"github.com/zombar/linkstash/models"
)

// Store is the persistence surface the handlers need. *db.DB satisfies it;
// tests inject fakes. Implementations signal absence with db.ErrNotFound and
// uniqueness conflicts with db.ErrDuplicate.
type Store interface {
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)

	CreateLink(link *models.Link) error
	LinkExists(userID, url string) (bool, error)
	GetLinkByID(userID, id string) (*models.Link, error)
	DeleteLink(userID, id string) error
	ListLinks(userID string, limit, offset int) ([]*models.Link, error)
	CountLinks(userID string) (int, error)
	SearchLinks(userID, query, tag string, limit, offset int) ([]*models.Link, error)
	CountSearchLinks(userID, query, tag string) (int, error)
	CountAllLinks() (int, error)
}

// Extractor fetches a page and extracts its metadata, degrading to a
// fallback record instead of failing.
type Extractor interface {
	ExtractMetadata(ctx context.Context, targetURL string) (*models.PageMetadata, bool)
}

// Enricher produces tags and summaries, degrading instead of failing.
type Enricher interface {
	Enrich(ctx context.Context, meta *models.PageMetadata, targetURL string) *models.Enrichment
	Summarize(ctx context.Context, meta *models.PageMetadata) string
}

// Server represents the API server.
type Server struct {
	store     Store
	extractor Extractor
	enricher  Enricher
	auth      *auth.Service
	addr      string
	server    *http.Server
}

// Config contains server configuration. Store, Extractor, Enricher and Auth
// are injected; the server owns no global state.
type Config struct {
	Addr        string
	CORSOrigins []string
	Store       Store
	Extractor   Extractor
	Enricher    Enricher
	Auth        *auth.Service
}

// NewServer creates a new API server.
func NewServer(config Config) (*Server, error) {
	if config.Store == nil || config.Extractor == nil || config.Enricher == nil || config.Auth == nil {
		return nil, fmt.Errorf("store, extractor, enricher and auth are required")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}

	s := &Server{
		store:     config.Store,
		extractor: config.Extractor,
		enricher:  config.Enricher,
		auth:      config.Auth,
		addr:      config.Addr,
	}

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      otelhttp.NewHandler(s.router(config.CORSOrigins), "linkstash-api"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // ingestion waits on a page fetch plus two model calls
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// router builds the route tree.
func (s *Server) router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/create-account", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh-token", s.handleRefreshToken)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/profile", s.handleProfile)
			r.Get("/me", s.handleProfile)
		})
	})

	r.Route("/api/v1/links", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/", s.handleSaveLink)
		r.Get("/", s.handleListLinks)
		r.Get("/search", s.handleSearchLinks)
		r.Get("/{id}", s.handleLinkDetails)
		r.Delete("/{id}", s.handleDeleteLink)
	})

	return r
}

// Start starts the API server.
func (s *Server) Start() error {
	slog.Info("starting API server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server. The store's lifecycle belongs
// to the caller that opened it.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// statusWriter records the response status for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// observe logs requests and records HTTP metrics. Health checks are skipped
// to reduce noise.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, fmt.Sprintf("%d", sw.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())

		if r.URL.Path != "/health" {
			slog.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
			)
		}
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountAllLinks()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get count")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"links":  count,
		"time":   time.Now(),
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondStoreError maps unexpected store failures to an opaque 500.
func respondStoreError(w http.ResponseWriter, err error) {
	slog.Error("store error", "error", err)
	respondError(w, http.StatusInternalServerError, "Internal server error")
}

// isNotFound reports whether err is the store's not-found sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}

// isDuplicate reports whether err is the store's duplicate sentinel.
func isDuplicate(err error) bool {
	return errors.Is(err, db.ErrDuplicate)
}
