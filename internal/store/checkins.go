package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lazypower/crystals/internal/geo"
)

// maxReasonSize caps stored failure reasons.
const maxReasonSize = 512

// Check-in statuses.
const (
	CheckInOK     = "ok"
	CheckInFailed = "failed"
)

// CheckIn is one entry in the position fix history.
type CheckIn struct {
	ID          int64           `json:"id"`
	Status      string          `json:"status"`
	Location    *geo.Coordinate `json:"location,omitempty"`
	NearbyCount int             `json:"nearbyCount"`
	Reason      string          `json:"reason,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// RecordCheckIn stores a successful position fix and how many crystals were nearby.
func (db *DB) RecordCheckIn(pos geo.Coordinate, nearbyCount int) error {
	_, err := db.Exec(`
		INSERT INTO checkins (status, lat, lng, nearby_count, created_at)
		VALUES ('ok', ?, ?, ?, ?)
	`, pos.Lat, pos.Lng, nearbyCount, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record checkin: %w", err)
	}
	return nil
}

// RecordCheckInFailure stores a failed position acquisition. Truncates reason to 512 bytes.
func (db *DB) RecordCheckInFailure(reason string) error {
	if len(reason) > maxReasonSize {
		reason = reason[:maxReasonSize]
	}
	_, err := db.Exec(`
		INSERT INTO checkins (status, reason, created_at)
		VALUES ('failed', ?, ?)
	`, reason, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record checkin failure: %w", err)
	}
	return nil
}

// RecentCheckIns returns the most recent check-ins, newest first.
func (db *DB) RecentCheckIns(limit int) ([]CheckIn, error) {
	rows, err := db.Query(`
		SELECT id, status, lat, lng, nearby_count, reason, created_at
		FROM checkins ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent checkins: %w", err)
	}
	defer rows.Close()

	var checkins []CheckIn
	for rows.Next() {
		var c CheckIn
		var lat, lng sql.NullFloat64
		var reason sql.NullString
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.Status, &lat, &lng, &c.NearbyCount, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan checkin: %w", err)
		}
		if lat.Valid && lng.Valid {
			c.Location = &geo.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
		}
		c.Reason = reason.String
		c.CreatedAt = time.UnixMilli(createdAt)
		checkins = append(checkins, c)
	}
	return checkins, rows.Err()
}
