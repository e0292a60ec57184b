package engine

import "errors"

var (
	// ErrPositionUnavailable means no position has been resolved yet.
	// Callers degrade (empty nearby list, unsorted list) instead of failing.
	ErrPositionUnavailable = errors.New("position unavailable")

	// ErrInvalidRadius is returned for a negative or NaN nearby radius.
	ErrInvalidRadius = errors.New("invalid radius")

	// ErrInvalidThreshold is returned for a negative or NaN clustering threshold.
	ErrInvalidThreshold = errors.New("invalid threshold")
)
