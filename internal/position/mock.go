package position

import (
	"context"
	"sync"
	"time"

	"github.com/lazypower/crystals/internal/geo"
)

// MockSource is a test double for Source. Delay simulates a slow fix and
// respects cancellation.
type MockSource struct {
	At    geo.Coordinate
	Err   error
	Delay time.Duration

	mu    sync.Mutex
	calls int
}

// Locate records the call and returns the configured result.
func (m *MockSource) Locate(ctx context.Context) (geo.Coordinate, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return geo.Coordinate{}, ctx.Err()
		}
	}
	return m.At, m.Err
}

// Calls returns how many times Locate ran.
func (m *MockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
