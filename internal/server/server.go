package server

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazypower/crystals/internal/engine"
	"github.com/lazypower/crystals/internal/store"
	"golang.org/x/time/rate"
)

// Options tunes a Server. Zero values pick defaults.
type Options struct {
	Logger *slog.Logger

	// Settings used until the user saves their own.
	Defaults store.Settings

	// Position updates accepted per second, with burst.
	PositionRate  float64
	PositionBurst int

	// Map front end served at /. Nil disables it.
	UI fs.FS
}

// Server is the crystals HTTP API server.
type Server struct {
	db       *store.DB
	engine   *engine.Engine
	log      *slog.Logger
	limiter  *rate.Limiter
	defaults store.Settings
	ui       fs.FS
	router   chi.Router
	version  string
	started  time.Time
}

// New creates a new Server over the given database and engine.
func New(db *store.DB, eng *engine.Engine, version string, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Defaults == (store.Settings{}) {
		opts.Defaults = store.DefaultSettings()
	}
	if opts.PositionRate <= 0 {
		opts.PositionRate = 2
	}
	if opts.PositionBurst < 1 {
		opts.PositionBurst = 5
	}

	s := &Server{
		db:       db,
		engine:   eng,
		log:      opts.Logger,
		limiter:  rate.NewLimiter(rate.Limit(opts.PositionRate), opts.PositionBurst),
		defaults: opts.Defaults,
		ui:       opts.UI,
		version:  version,
		started:  time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/crystals", s.handleListCrystals)
		r.Post("/crystals", s.handleCreateCrystal)
		r.Get("/crystals/{id}", s.handleGetCrystal)
		r.Put("/crystals/{id}", s.handleUpdateCrystal)
		r.Delete("/crystals/{id}", s.handleDeleteCrystal)

		r.Get("/position", s.handleGetPosition)
		r.With(s.throttle).Post("/position", s.handlePositionUpdate)
		r.Post("/position/failure", s.handlePositionFailure)

		r.Get("/groups", s.handleGroups)
		r.Get("/nearby", s.handleNearby)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleSaveSettings)
		r.Get("/stats", s.handleStats)
		r.Get("/checkins", s.handleCheckIns)
		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
	})

	if s.ui != nil {
		r.Get("/*", spaHandler(s.ui))
	}

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	_, resolved := s.engine.State().(engine.Resolved)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"uptime":   time.Since(s.started).Seconds(),
		"db":       dbOK,
		"db_path":  s.db.Path,
		"resolved": resolved,
	})
}

// throttle rejects position updates beyond the configured rate.
func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "too many position updates")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
