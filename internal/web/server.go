// Package web serves a read-only HTTP view of the live session and the
// stored session history.
package web

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lowaak/smart-trainer/live-session/internal/live"
	"github.com/lowaak/smart-trainer/live-session/internal/session"
	"github.com/lowaak/smart-trainer/live-session/internal/store"
	"github.com/lowaak/smart-trainer/live-session/internal/telemetry"
)

// StateSource exposes the current session state.
type StateSource interface {
	State() session.State
}

// LiveSource exposes the merged live metrics and sensor status.
type LiveSource interface {
	Snapshot() live.Snapshot
	HasData() bool
	IsSynthetic() bool
	Statuses() map[telemetry.SensorKind]telemetry.ConnectionStatus
}

// SessionStore reads persisted sessions.
type SessionStore interface {
	List(ctx context.Context) ([]store.Entry, error)
	Get(ctx context.Context, id string) (store.Record, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	state     StateSource
	live      LiveSource
	sessions  SessionStore
	threshold session.ThresholdProvider
	logger    *log.Logger
	router    chi.Router
}

// New creates a new Server with all routes configured.
func New(state StateSource, liveSource LiveSource, sessions SessionStore, threshold session.ThresholdProvider, logger *log.Logger) *Server {
	if state == nil || liveSource == nil || sessions == nil || threshold == nil {
		panic("HTTP: sources cannot be nil")
	}
	if logger == nil {
		panic("HTTP: logger cannot be nil")
	}
	s := &Server{
		state:     state,
		live:      liveSource,
		sessions:  sessions,
		threshold: threshold,
		logger:    logger,
		router:    chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.logger))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Get("/live", s.handleLive)
		r.Get("/trainings", s.handleTrainings)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/sessions/{id}/fit", s.handleDownloadFIT)
	})
}
