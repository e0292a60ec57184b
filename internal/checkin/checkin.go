// Package checkin drives the engine from outside: it acquires a position,
// reports it to the server and collects the nearby alert. Retry and
// scheduling policy live here, never in the engine.
package checkin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lazypower/crystals/internal/geo"
	"github.com/lazypower/crystals/internal/position"
	"github.com/lazypower/crystals/internal/store"
)

// Result is the outcome of one check-in. Exactly one of Position and
// PositionErr is set.
type Result struct {
	Position    *geo.Coordinate
	PositionErr error

	Radius float64
	Nearby []store.Crystal
	Alert  string
}

// Run acquires one position from src and reports it to the server. A failed
// acquisition is reported as a failure and returned in Result.PositionErr;
// the returned error is reserved for talking to the server.
func Run(ctx context.Context, c *Client, src position.Source, timeout time.Duration) (*Result, error) {
	pos, err := position.Acquire(ctx, src, timeout)
	if err != nil {
		body, _ := json.Marshal(map[string]string{"reason": err.Error()})
		if _, postErr := c.Post(ctx, "/api/position/failure", body); postErr != nil {
			return nil, postErr
		}
		return &Result{PositionErr: err}, nil
	}

	body, err := json.Marshal(pos)
	if err != nil {
		return nil, fmt.Errorf("encode position: %w", err)
	}
	data, err := c.Post(ctx, "/api/position", body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Radius float64         `json:"radius"`
		Nearby []store.Crystal `json:"nearby"`
		Alert  string          `json:"alert"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode position response: %w", err)
	}

	return &Result{
		Position: &pos,
		Radius:   resp.Radius,
		Nearby:   resp.Nearby,
		Alert:    resp.Alert,
	}, nil
}

// Watch checks in immediately and then every interval until ctx is done,
// handing each outcome to fn. Server errors do not stop the loop; the next
// tick simply tries again.
func Watch(ctx context.Context, c *Client, src position.Source, timeout, interval time.Duration, log *slog.Logger, fn func(*Result, error)) error {
	if interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %s", interval)
	}
	if log == nil {
		log = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		res, err := Run(ctx, c, src, timeout)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Warn("check-in failed", "server", c.URL(), "err", err)
		}
		fn(res, err)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
