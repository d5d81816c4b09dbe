package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/star/sattrack/internal/archive"
	"github.com/star/sattrack/internal/record"
	"github.com/star/sattrack/internal/transform"
)

const (
	defaultAttemptLimit = 20
	maxAttemptLimit     = 500
)

// TrailResponse is the map geometry for one satellite.
type TrailResponse struct {
	ID       string              `json:"id"`
	SatName  *string             `json:"satname"`
	Color    string              `json:"color"`
	Visible  bool                `json:"visible"`
	Segments []transform.Segment `json:"segments"`
}

// SummaryResponse counts records by state.
type SummaryResponse struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	Inactive    int `json:"inactive"`
	Decayed     int `json:"decayed"`
	Visible     int `json:"visible"`
	Passthrough int `json:"passthrough"`
}

// AttemptsResponse lists archived attempts newest first.
type AttemptsResponse struct {
	ID       string          `json:"id"`
	Attempts []archive.Entry `json:"attempts"`
}

// store returns the current store, or writes a 500 and returns nil.
func (s *Server) store(w http.ResponseWriter) *record.Store {
	st, err := s.source.Get()
	if err != nil {
		s.logger.Warn("store load problem", "component", "api", "error", err)
	}
	if st == nil {
		writeError(w, http.StatusInternalServerError, "store unavailable")
		return nil
	}
	return st
}

func (s *Server) handleListSatellites(w http.ResponseWriter, r *http.Request) {
	st := s.store(w)
	if st == nil {
		return
	}

	filter := r.URL.Query().Get("status")
	if filter == "" {
		data, err := record.Marshal(st, false)
		if err != nil {
			s.logger.Error("failed to serialize store", "component", "api", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to serialize store")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}

	var want record.Status
	switch filter {
	case "active":
		want = record.StatusActive
	case "inactive":
		want = record.StatusInactive
	default:
		writeError(w, http.StatusBadRequest, "status must be active or inactive")
		return
	}

	out := []*record.Record{}
	for _, rec := range st.Records() {
		if rec.Status == want {
			out = append(out, rec)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *record.Record {
	st := s.store(w)
	if st == nil {
		return nil
	}
	id := chi.URLParam(r, "id")
	rec, ok := st.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "satellite not found")
		return nil
	}
	return rec
}

func (s *Server) handleGetSatellite(w http.ResponseWriter, r *http.Request) {
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetTrail(w http.ResponseWriter, r *http.Request) {
	rec := s.lookup(w, r)
	if rec == nil {
		return
	}

	segments := transform.TrailSegments(rec.History)
	if segments == nil {
		segments = []transform.Segment{}
	}
	writeJSON(w, http.StatusOK, TrailResponse{
		ID:       rec.ID,
		SatName:  rec.SatName,
		Color:    transform.TrailColor(rec.ID),
		Visible:  transform.Visible(rec),
		Segments: segments,
	})
}

func (s *Server) handleGetAttempts(w http.ResponseWriter, r *http.Request) {
	if s.attempts == nil {
		writeError(w, http.StatusNotFound, archive.ErrDisabled.Error())
		return
	}

	limit := defaultAttemptLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxAttemptLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxAttemptLimit))
			return
		}
		limit = n
	}

	id := chi.URLParam(r, "id")
	entries, err := s.attempts.Recent(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, archive.ErrDisabled) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("failed to query attempts", "component", "api", "satellite_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query attempts")
		return
	}
	if entries == nil {
		entries = []archive.Entry{}
	}
	writeJSON(w, http.StatusOK, AttemptsResponse{ID: id, Attempts: entries})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	st := s.store(w)
	if st == nil {
		return
	}

	resp := SummaryResponse{Passthrough: st.Passthrough()}
	for _, rec := range st.Records() {
		resp.Total++
		if rec.Status == record.StatusActive {
			resp.Active++
		} else {
			resp.Inactive++
		}
		if rec.Decayed {
			resp.Decayed++
		}
		if transform.Visible(rec) {
			resp.Visible++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
