// Package position acquires the device position from a pluggable source.
package position

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lazypower/crystals/internal/config"
	"github.com/lazypower/crystals/internal/geo"
)

// ErrUnavailable wraps every failed or timed-out acquisition.
var ErrUnavailable = errors.New("position unavailable")

// Source reads the current position. Implementations must honor ctx.
type Source interface {
	Locate(ctx context.Context) (geo.Coordinate, error)
}

// NewSource creates a Source based on the config provider setting.
func NewSource(cfg config.PositionConfig) (Source, error) {
	switch cfg.Provider {
	case "static":
		return Static{At: geo.Coordinate{Lat: cfg.Lat, Lng: cfg.Lng}}, nil
	case "file":
		path := cfg.File
		if path == "" {
			path = DefaultFixPath()
		}
		return &FileSource{Path: path, MaxAge: cfg.MaxAge}, nil
	case "command":
		if cfg.Command == "" {
			return nil, fmt.Errorf("command provider requires position.command")
		}
		return NewCommand(cfg.Command, cfg.Args...), nil
	default:
		return nil, fmt.Errorf("unknown position provider: %q", cfg.Provider)
	}
}

// DefaultFixPath returns ~/.crystals/position.json.
func DefaultFixPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "position.json"
	}
	return filepath.Join(home, ".crystals", "position.json")
}

// fix is the JSON shape of a position reading. Both lat/lng and the
// latitude/longitude spelling used by Android location tools are accepted.
type fix struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func parseFix(data []byte) (geo.Coordinate, error) {
	var f fix
	if err := json.Unmarshal(data, &f); err != nil {
		return geo.Coordinate{}, fmt.Errorf("decode fix: %w", err)
	}

	lat, lng := f.Lat, f.Lng
	if lat == nil {
		lat = f.Latitude
	}
	if lng == nil {
		lng = f.Longitude
	}
	if lat == nil || lng == nil {
		return geo.Coordinate{}, fmt.Errorf("fix has no coordinates")
	}

	c := geo.Coordinate{Lat: *lat, Lng: *lng}
	if err := c.Validate(); err != nil {
		return geo.Coordinate{}, err
	}
	return c, nil
}
