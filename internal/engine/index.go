package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lazypower/crystals/internal/geo"
	"github.com/lazypower/crystals/internal/store"
)

// Match is a crystal paired with its distance from the current position.
type Match struct {
	Crystal        store.Crystal `json:"crystal"`
	DistanceMeters float64       `json:"distanceMeters"`
}

// Nearby returns every record within radiusMeters (inclusive) of pos,
// in input order.
func Nearby(pos geo.Coordinate, records []store.Crystal, radiusMeters float64) ([]store.Crystal, error) {
	return nearby(pos, records, radiusMeters, slog.Default())
}

func nearby(pos geo.Coordinate, records []store.Crystal, radiusMeters float64, log *slog.Logger) ([]store.Crystal, error) {
	if err := checkDistanceArg(radiusMeters, ErrInvalidRadius); err != nil {
		return nil, err
	}

	out := []store.Crystal{}
	for _, r := range locatable(records, log) {
		if geo.Distance(pos, r.Location) <= radiusMeters {
			out = append(out, r)
		}
	}
	return out, nil
}

// SortByDistance pairs each record with its distance from pos and sorts
// ascending. Equal distances keep their input order.
func SortByDistance(pos geo.Coordinate, records []store.Crystal) []Match {
	return sortByDistance(pos, records, slog.Default())
}

func sortByDistance(pos geo.Coordinate, records []store.Crystal, log *slog.Logger) []Match {
	valid := locatable(records, log)
	matches := make([]Match, len(valid))
	for i, r := range valid {
		matches[i] = Match{Crystal: r, DistanceMeters: geo.Distance(pos, r.Location)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].DistanceMeters < matches[j].DistanceMeters
	})
	return matches
}

// Filter keeps records whose name or notes contain query (case-insensitive)
// and, when category is set, whose category matches.
func Filter(records []store.Crystal, query, category string) []store.Crystal {
	query = strings.ToLower(strings.TrimSpace(query))

	out := []store.Crystal{}
	for _, r := range records {
		if category != "" && r.Category != category {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(r.Name), query) &&
			!strings.Contains(strings.ToLower(r.Notes), query) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// AlertMessage is the notification text for a set of nearby crystals.
func AlertMessage(nearby []store.Crystal) string {
	switch len(nearby) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("You're at %s", nearby[0].Name)
	default:
		return fmt.Sprintf("%d crystals nearby", len(nearby))
	}
}
