package position

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/crystals/internal/geo"
)

// DefaultTimeout bounds a single acquisition.
const DefaultTimeout = 10 * time.Second

// Acquire makes one request to src and delivers exactly one result: the
// coordinate, or an error wrapping ErrUnavailable. A source that ignores
// cancellation is abandoned once the timeout passes. There are no retries.
func Acquire(ctx context.Context, src Source, timeout time.Duration) (geo.Coordinate, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		at  geo.Coordinate
		err error
	}
	done := make(chan result, 1)
	go func() {
		at, err := src.Locate(ctx)
		done <- result{at, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return geo.Coordinate{}, fmt.Errorf("%w: %w", ErrUnavailable, r.err)
		}
		if err := r.at.Validate(); err != nil {
			return geo.Coordinate{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return r.at, nil
	case <-ctx.Done():
		return geo.Coordinate{}, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	}
}
