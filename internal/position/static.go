package position

import (
	"context"

	"github.com/lazypower/crystals/internal/geo"
)

// Static always reports the same coordinate.
type Static struct {
	At geo.Coordinate
}

// Locate returns the fixed coordinate.
func (s Static) Locate(ctx context.Context) (geo.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return geo.Coordinate{}, err
	}
	if err := s.At.Validate(); err != nil {
		return geo.Coordinate{}, err
	}
	return s.At, nil
}
