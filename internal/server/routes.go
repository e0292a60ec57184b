package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lazypower/crystals/internal/engine"
	"github.com/lazypower/crystals/internal/geo"
	"github.com/lazypower/crystals/internal/store"
)

// crystalRequest is the body of create and update. Omitted fields keep
// their current value on update.
type crystalRequest struct {
	Name     *string         `json:"name"`
	Category *string         `json:"category"`
	Notes    *string         `json:"notes"`
	Address  *string         `json:"address"`
	Location *geo.Coordinate `json:"location"`
}

func (req *crystalRequest) apply(c *store.Crystal) {
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Category != nil {
		c.Category = *req.Category
	}
	if req.Notes != nil {
		c.Notes = *req.Notes
	}
	if req.Address != nil {
		c.Address = *req.Address
	}
	if req.Location != nil {
		c.Location = *req.Location
	}
}

func (s *Server) handleListCrystals(w http.ResponseWriter, r *http.Request) {
	records, err := s.db.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	q := r.URL.Query()
	filtered := engine.Filter(records, q.Get("q"), q.Get("category"))
	matches, sorted := s.engine.SortedList(filtered)

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(matches),
		"sorted":   sorted,
		"crystals": matches,
	})
}

func (s *Server) handleCreateCrystal(w http.ResponseWriter, r *http.Request) {
	var req crystalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	var c store.Crystal
	req.apply(&c)

	// Dropped without a location: pin it where the user stands.
	if req.Location == nil {
		at, err := s.engine.Center()
		if err != nil {
			writeError(w, http.StatusConflict, "no location given and position unavailable")
			return
		}
		c.Location = at
	}

	if err := s.db.CreateCrystal(&c); err != nil {
		s.storeError(w, err)
		return
	}
	s.log.Info("crystal dropped", "id", c.ID, "name", c.Name)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCrystal(w http.ResponseWriter, r *http.Request) {
	c, err := s.db.GetCrystal(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "crystal not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCrystal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req crystalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	c, err := s.db.GetCrystal(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "crystal not found")
		return
	}

	req.apply(c)
	if err := s.db.UpdateCrystal(c); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCrystal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.db.DeleteCrystal(id); err != nil {
		s.storeError(w, err)
		return
	}
	s.log.Info("crystal deleted", "id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// storeError maps store sentinels to status codes.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidCrystal), errors.Is(err, store.ErrInvalidSettings):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("store failure", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
