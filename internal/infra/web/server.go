// Package web serves the public pages (home, the authorization code
// relay) and the token-protected admin API, plus /metrics.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/terminalpixel/postrchild/internal/config"
	"github.com/terminalpixel/postrchild/internal/domain/model"
	"github.com/terminalpixel/postrchild/internal/domain/ports/repository"
	"github.com/terminalpixel/postrchild/internal/infra/metrics"
)

// AccountCounter is what the stats endpoint needs from storage.
type AccountCounter interface {
	Count(ctx context.Context) (int64, error)
}

type Server struct {
	cfg      *config.WebConfig
	auth     *AuthManager
	sessions repository.SessionRepository
	accounts AccountCounter
	log      zerolog.Logger
	server   *http.Server
}

func NewServer(cfg *config.WebConfig, sessions repository.SessionRepository, accounts AccountCounter, secure bool, log zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		auth:     NewAuthManager(cfg, secure),
		sessions: sessions,
		accounts: accounts,
		log:      log.With().Str("component", "web").Logger(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/", s.handleHome)
	r.Get("/auth", s.handleAuthCode)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/logout", s.handleLogout)
			r.Get("/stats", s.handleStats)
			r.Delete("/sessions/{user}/{conversation}", s.handleDeleteSession)
		})
	})
	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", s.cfg.Port).Msg("web server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// requireAdmin guards the admin API with the JWT minted by login.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.JWTSecret == "" {
			s.log.Error().Msg("admin jwt secret is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := model.Identity{
		UserID:         chi.URLParam(r, "user"),
		ConversationID: chi.URLParam(r, "conversation"),
	}
	if !id.Valid() {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.log.Error().Err(err).Str("identity", id.Key()).Msg("admin session delete failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
