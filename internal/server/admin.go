package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lazypower/crystals/internal/store"
)

const maxImportSize = 32 << 20

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.db.GetSettings(s.defaults)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.db.GetSettings(s.defaults)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// decode over the current values so partial bodies work
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.db.SaveSettings(settings); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": stats.Count,
		"bytes": stats.Bytes,
		"size":  humanize.Bytes(uint64(stats.Bytes)),
	})
}

func (s *Server) handleCheckIns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	checkins, err := s.db.RecentCheckIns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if checkins == nil {
		checkins = []store.CheckIn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(checkins),
		"checkins": checkins,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	records, err := s.db.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	compress := r.URL.Query().Get("gzip") != ""
	name := fmt.Sprintf("crystals-backup-%s.json", time.Now().Format("2006-01-02"))
	if compress {
		name += ".gz"
		w.Header().Set("Content-Type", "application/gzip")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	if err := store.Export(w, records, compress); err != nil {
		s.log.Error("export", "err", err)
	}
}

// handleImport replaces the whole record set with the uploaded backup.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	result, err := store.Import(http.MaxBytesReader(w, r.Body, maxImportSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.db.Save(result.Crystals); err != nil {
		s.storeError(w, err)
		return
	}

	skipped := result.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	for _, reason := range skipped {
		s.log.Warn("import skipped entry", "reason", reason)
	}
	s.log.Info("import complete", "imported", len(result.Crystals), "skipped", len(skipped))

	writeJSON(w, http.StatusOK, map[string]any{
		"imported": len(result.Crystals),
		"skipped":  skipped,
	})
}
