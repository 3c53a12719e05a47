package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lowaak/smart-trainer/live-session/internal/fitfile"
	"github.com/lowaak/smart-trainer/live-session/internal/live"
	"github.com/lowaak/smart-trainer/live-session/internal/session"
	"github.com/lowaak/smart-trainer/live-session/internal/store"
	"github.com/lowaak/smart-trainer/live-session/internal/telemetry"
)

type sessionResponse struct {
	Phase        session.Phase `json:"phase"`
	TotalSeconds int           `json:"totalSeconds"`
	TargetPower  *int          `json:"targetPower,omitempty"`
	State        session.State `json:"state"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	state := s.state.State()
	resp := sessionResponse{
		Phase:        state.Phase(),
		TotalSeconds: state.TotalSeconds(),
		State:        state,
	}
	if block, ok := state.CurrentBlock(); ok {
		target := session.TargetPower(block, s.threshold.FTP())
		resp.TargetPower = &target
	}
	writeJSON(w, http.StatusOK, resp)
}

type liveResponse struct {
	HasData   bool                                                `json:"hasData"`
	Synthetic bool                                                `json:"synthetic"`
	Snapshot  live.Snapshot                                       `json:"snapshot"`
	Sensors   map[telemetry.SensorKind]telemetry.ConnectionStatus `json:"sensors"`
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, liveResponse{
		HasData:   s.live.HasData(),
		Synthetic: s.live.IsSynthetic(),
		Snapshot:  s.live.Snapshot(),
		Sensors:   s.live.Statuses(),
	})
}

type trainingResponse struct {
	Index        int    `json:"index"`
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Sport        string `json:"sport"`
	TotalSeconds int    `json:"totalSeconds"`
	Blocks       int    `json:"blocks"`
}

func (s *Server) handleTrainings(w http.ResponseWriter, r *http.Request) {
	resp := make([]trainingResponse, 0, len(session.Trainings))
	for i, t := range session.Trainings {
		resp = append(resp, trainingResponse{
			Index:        i,
			ID:           t.ID,
			Title:        t.Title,
			Description:  t.Description,
			Sport:        t.Sport,
			TotalSeconds: t.TotalSeconds(),
			Blocks:       len(t.Flatten()),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	entries, err := s.sessions.List(r.Context())
	if err != nil {
		s.logger.Printf("HTTP: Failed to list sessions: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list sessions"})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type storedSessionResponse struct {
	ID          string          `json:"id"`
	CompletedAt time.Time       `json:"completedAt"`
	Summary     session.Summary `json:"summary"`
	Load        session.Load    `json:"load"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.getRecord(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, storedSessionResponse{
		ID:          rec.ID,
		CompletedAt: rec.CompletedAt,
		Summary:     rec.Summary,
		Load:        session.TrainingLoad(rec.Summary, s.threshold.FTP()),
	})
}

func (s *Server) handleDownloadFIT(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.getRecord(w, r)
	if !ok {
		return
	}
	data := fitfile.Encode(rec.Summary, rec.CompletedAt)

	w.Header().Set("Content-Type", "application/vnd.ant.fit")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fitfile.FileName(rec.Summary.Title)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Printf("HTTP: Failed to write fit file %s: %v", rec.ID, err)
	}
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) (store.Record, bool) {
	id := chi.URLParam(r, "id")
	rec, err := s.sessions.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return store.Record{}, false
	}
	if err != nil {
		s.logger.Printf("HTTP: Failed to load session %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load session"})
		return store.Record{}, false
	}
	return rec, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
