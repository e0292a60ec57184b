package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/lazypower/crystals/internal/geo"
	"github.com/lazypower/crystals/internal/store"
)

// MarkerThresholdMeters collapses crystals this close together into one map marker.
const MarkerThresholdMeters = 10.0

// Group is a set of crystals collapsed for display. Anchor is the location of
// the first member; members are in discovery order, anchor first.
type Group struct {
	Anchor  geo.Coordinate  `json:"anchor"`
	Members []store.Crystal `json:"members"`
}

// Cluster partitions records into groups using a greedy single pass.
//
// Each record not yet assigned opens a group and claims every other
// unassigned record within thresholdMeters (inclusive) of its own location.
// Membership is not transitive: a record that is only close to a claimed
// member, not to the anchor, starts its own group later. The result depends
// on input order.
//
// Runs O(n²) distance computations, which is fine for a personal record set
// but does not scale to large collections.
func Cluster(records []store.Crystal, thresholdMeters float64) ([]Group, error) {
	return cluster(records, thresholdMeters, slog.Default())
}

func cluster(records []store.Crystal, thresholdMeters float64, log *slog.Logger) ([]Group, error) {
	if err := checkDistanceArg(thresholdMeters, ErrInvalidThreshold); err != nil {
		return nil, err
	}

	snapshot := locatable(records, log)
	assigned := make([]bool, len(snapshot))
	groups := make([]Group, 0, len(snapshot))

	for i, anchor := range snapshot {
		if assigned[i] {
			continue
		}
		g := Group{
			Anchor:  anchor.Location,
			Members: []store.Crystal{anchor},
		}
		for j, other := range snapshot {
			if j == i || assigned[j] {
				continue
			}
			if geo.Distance(anchor.Location, other.Location) <= thresholdMeters {
				g.Members = append(g.Members, other)
				assigned[j] = true
			}
		}
		assigned[i] = true
		groups = append(groups, g)
	}

	return groups, nil
}

// locatable copies the records with a usable location, logging the rest.
func locatable(records []store.Crystal, log *slog.Logger) []store.Crystal {
	out := make([]store.Crystal, 0, len(records))
	for _, r := range records {
		if err := r.Location.Validate(); err != nil {
			log.Warn("skipping crystal with unusable location", "id", r.ID, "name", r.Name, "err", err)
			continue
		}
		out = append(out, r)
	}
	return out
}

// checkDistanceArg rejects negative and NaN distances. +Inf is allowed.
func checkDistanceArg(meters float64, sentinel error) error {
	if math.IsNaN(meters) || meters < 0 {
		return fmt.Errorf("%w: %v", sentinel, meters)
	}
	return nil
}
