package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lazypower/crystals/internal/geo"
	"github.com/lazypower/crystals/internal/store"
)

// PositionState is either Unresolved or Resolved.
type PositionState interface {
	positionState()
}

// Unresolved is the initial state: no position has ever been read.
type Unresolved struct{}

// Resolved holds the most recent successful position read.
type Resolved struct {
	At      geo.Coordinate
	FixedAt time.Time
}

func (Unresolved) positionState() {}
func (Resolved) positionState()   {}

// PositionFailure is the last failed position acquisition. It is reported
// alongside the held state and never replaces it.
type PositionFailure struct {
	Err error
	At  time.Time
}

// Engine tracks the live position and answers display and alerting queries
// over a record set passed in on every call. It keeps no records of its own,
// and nothing is cached between calls.
type Engine struct {
	Logger *slog.Logger

	mu      sync.RWMutex
	state   PositionState
	failure *PositionFailure
	now     func() time.Time
}

// New creates an Engine in the Unresolved state. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Logger: logger,
		state:  Unresolved{},
		now:    time.Now,
	}
}

// OnPositionUpdate replaces the held position and clears any reported failure.
// Nothing is recomputed until the next read.
func (e *Engine) OnPositionUpdate(pos geo.Coordinate) error {
	if err := pos.Validate(); err != nil {
		return fmt.Errorf("position update: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Resolved{At: pos, FixedAt: e.now()}
	e.failure = nil
	e.Logger.Debug("position updated", "lat", pos.Lat, "lng", pos.Lng)
	return nil
}

// OnPositionFailure records a failed or timed-out acquisition. A previously
// resolved position is kept.
func (e *Engine) OnPositionFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failure = &PositionFailure{Err: err, At: e.now()}
	e.Logger.Warn("position acquisition failed", "err", err)
}

// State returns the current position state.
func (e *Engine) State() PositionState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// LastFailure returns the failure reported since the last successful update, or nil.
func (e *Engine) LastFailure() *PositionFailure {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.failure == nil {
		return nil
	}
	f := *e.failure
	return &f
}

// Center returns the held position for "center on me".
func (e *Engine) Center() (geo.Coordinate, error) {
	switch s := e.State().(type) {
	case Resolved:
		return s.At, nil
	default:
		return geo.Coordinate{}, ErrPositionUnavailable
	}
}

// GroupsForDisplay groups records into map markers. Needs no position.
func (e *Engine) GroupsForDisplay(records []store.Crystal) []Group {
	groups, err := cluster(records, MarkerThresholdMeters, e.Logger)
	if err != nil {
		// unreachable: the marker threshold is a valid constant
		panic(err)
	}
	return groups
}

// CheckNearby returns the records within radiusMeters of the held position.
// When no position is held it returns an empty list and ErrPositionUnavailable.
func (e *Engine) CheckNearby(records []store.Crystal, radiusMeters float64) ([]store.Crystal, error) {
	if err := checkDistanceArg(radiusMeters, ErrInvalidRadius); err != nil {
		return nil, err
	}

	switch s := e.State().(type) {
	case Resolved:
		return nearby(s.At, records, radiusMeters, e.Logger)
	default:
		return []store.Crystal{}, ErrPositionUnavailable
	}
}

// SortedList returns the list view. With a held position the records are
// sorted by distance and sorted is true; otherwise they come back in input
// order with zero distances.
func (e *Engine) SortedList(records []store.Crystal) (matches []Match, sorted bool) {
	switch s := e.State().(type) {
	case Resolved:
		return sortByDistance(s.At, records, e.Logger), true
	default:
		matches = make([]Match, len(records))
		for i, r := range records {
			matches[i] = Match{Crystal: r}
		}
		return matches, false
	}
}
