// Package server handles HTTP endpoints and request routing. It is the
// presentation boundary: the search core emits structured events and the
// server streams them to the caller as Server-Sent Events.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"yajutter-search/cache"
	"yajutter-search/pkg/yajutter"
	"yajutter-search/search"
)

//go:embed tmpl/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "tmpl/*.tmpl"))

// Searcher runs one full search invocation, delivering output through the
// callbacks.
type Searcher interface {
	Run(ctx context.Context, query, key string, cb search.Callbacks) ([]yajutter.Post, error)
}

// CredentialStore persists the API credential.
type CredentialStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, key string) error
}

// Server handles HTTP requests.
type Server struct {
	searcher       Searcher
	creds          CredentialStore
	users          *cache.UserCache
	logger         *slog.Logger
	allowedOrigins []string
}

// Config holds server configuration.
type Config struct {
	Searcher       Searcher
	Credentials    CredentialStore
	Users          *cache.UserCache
	Logger         *slog.Logger
	AllowedOrigins []string
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	return &Server{
		searcher:       cfg.Searcher,
		creds:          cfg.Credentials,
		users:          cfg.Users,
		logger:         cfg.Logger,
		allowedOrigins: cfg.AllowedOrigins,
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Get("/search", s.handleSearch)
	r.Get("/credential", s.handleCredentialStatus)
	r.Post("/credential", s.handleCredentialSave)
	return r
}

// ListenAndServe starts the server with explicit timeouts. No WriteTimeout:
// the search stream stays open for the life of a scan.
func (s *Server) ListenAndServe(port string) error {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("Starting HTTP server", "port", port)
	return server.ListenAndServe()
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")

	if err := templates.ExecuteTemplate(w, "index.tmpl", nil); err != nil {
		s.logger.Error("Failed to render template", "template", "index.tmpl", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleCredentialStatus(w http.ResponseWriter, r *http.Request) {
	key, err := s.creds.Load(r.Context())
	if err != nil {
		s.logger.Error("Failed to load credential", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load credential"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"configured": key != ""})
}

func (s *Server) handleCredentialSave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.APIKey = strings.TrimSpace(req.APIKey)
	if req.APIKey == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "api_key must not be empty"})
		return
	}

	if err := s.creds.Save(r.Context(), req.APIKey); err != nil {
		s.logger.Error("Failed to save credential", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not save credential"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("Failed to write JSON response", "error", err)
	}
}
