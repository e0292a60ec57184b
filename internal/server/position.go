package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lazypower/crystals/internal/engine"
	"github.com/lazypower/crystals/internal/geo"
	"github.com/lazypower/crystals/internal/store"
)

type positionResponse struct {
	Resolved  bool            `json:"resolved"`
	Position  *geo.Coordinate `json:"position,omitempty"`
	FixedAt   *time.Time      `json:"fixedAt,omitempty"`
	LastError string          `json:"lastError,omitempty"`
	FailedAt  *time.Time      `json:"failedAt,omitempty"`
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	var resp positionResponse
	switch st := s.engine.State().(type) {
	case engine.Resolved:
		resp.Resolved = true
		resp.Position = &st.At
		resp.FixedAt = &st.FixedAt
	case engine.Unresolved:
	}
	if f := s.engine.LastFailure(); f != nil {
		if f.Err != nil {
			resp.LastError = f.Err.Error()
		}
		resp.FailedAt = &f.At
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePositionUpdate feeds a fresh fix to the engine, logs the check-in
// and answers with what is nearby so a single call can drive an alert.
func (s *Server) handlePositionUpdate(w http.ResponseWriter, r *http.Request) {
	var pos geo.Coordinate
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.engine.OnPositionUpdate(pos); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, settings, ok := s.loadForProximity(w)
	if !ok {
		return
	}
	near, err := s.engine.CheckNearby(records, settings.NotificationRadius)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.db.RecordCheckIn(pos, len(near)); err != nil {
		s.log.Warn("record checkin", "err", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"position": pos,
		"radius":   settings.NotificationRadius,
		"nearby":   near,
		"alert":    engine.AlertMessage(near),
	})
}

func (s *Server) handlePositionFailure(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		req.Reason = "unknown"
	}

	s.engine.OnPositionFailure(errors.New(req.Reason))
	if err := s.db.RecordCheckInFailure(req.Reason); err != nil {
		s.log.Warn("record checkin failure", "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	records, err := s.db.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	groups := s.engine.GroupsForDisplay(records)
	writeJSON(w, http.StatusOK, map[string]any{
		"threshold": engine.MarkerThresholdMeters,
		"count":     len(groups),
		"groups":    groups,
	})
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	records, settings, ok := s.loadForProximity(w)
	if !ok {
		return
	}

	radius := settings.NotificationRadius
	if v := r.URL.Query().Get("radius"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "radius must be a number")
			return
		}
		radius = parsed
	}

	near, err := s.engine.CheckNearby(records, radius)
	switch {
	case errors.Is(err, engine.ErrInvalidRadius):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, engine.ErrPositionUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":  err.Error(),
			"radius": radius,
			"nearby": near,
		})
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"radius": radius,
		"count":  len(near),
		"nearby": near,
		"alert":  engine.AlertMessage(near),
	})
}

func (s *Server) loadForProximity(w http.ResponseWriter) ([]store.Crystal, store.Settings, bool) {
	records, err := s.db.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, store.Settings{}, false
	}
	settings, err := s.db.GetSettings(s.defaults)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, store.Settings{}, false
	}
	return records, settings, true
}
