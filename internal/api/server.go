package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/amberline/daybeat/internal/store"
	"github.com/amberline/daybeat/internal/timeline"
)

// Store is the slice of the persistence layer the handlers forward to.
type Store interface {
	ListIntervals(ctx context.Context, owner uuid.UUID, from, to time.Time) ([]timeline.RawInterval, error)
	CreateInterval(ctx context.Context, owner uuid.UUID, r timeline.RawInterval) (timeline.RawInterval, error)
	UpdateInterval(ctx context.Context, owner uuid.UUID, id uuid.UUID, patch store.IntervalPatch) (timeline.RawInterval, error)
	StopInterval(ctx context.Context, owner uuid.UUID, id uuid.UUID, at time.Time) (timeline.RawInterval, error)
	DeleteInterval(ctx context.Context, owner uuid.UUID, id uuid.UUID) error
	ListCategories(ctx context.Context, owner uuid.UUID) (map[string]timeline.Category, error)
	CreateCategory(ctx context.Context, owner uuid.UUID, name, color string) (timeline.Category, error)
}

// Publisher posts interval change notifications. May be nil when the bus is
// not configured.
type Publisher interface {
	Publish(subject string, data any) error
}

type Server struct {
	router     *chi.Mux
	port       int
	store      Store
	publisher  Publisher
	defaultLoc *time.Location
	now        func() time.Time
}

func NewServer(port int, apiToken string, st Store, pub Publisher, defaultLoc *time.Location) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:     router,
		port:       port,
		store:      st,
		publisher:  pub,
		defaultLoc: defaultLoc,
		now:        time.Now,
	}

	router.Get("/health", s.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/timeline", s.getTimeline)
		r.Get("/intervals", s.listIntervals)
		r.Post("/intervals", s.createInterval)
		r.Patch("/intervals/{id}", s.updateInterval)
		r.Delete("/intervals/{id}", s.deleteInterval)
		r.Post("/intervals/{id}/stop", s.stopInterval)
		r.Get("/categories", s.listCategories)
		r.Post("/categories", s.createCategory)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// BearerAuthMiddleware rejects requests without the configured bearer token.
// An empty token disables the check for local development.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
				if got != token {
					writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ownerID resolves the owner the request acts for. Authentication itself is
// the fronting proxy's job; it forwards the resolved owner in a header.
func ownerID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-Daybeat-Owner")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing X-Daybeat-Owner header")
	}
	owner, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid X-Daybeat-Owner header")
	}
	return owner, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
