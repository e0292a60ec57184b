package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// DefaultNotificationRadius is the nearby radius in meters when none is configured.
const DefaultNotificationRadius = 100.0

const (
	keyNotificationRadius = "notification_radius"
	keyAutoCheckLocation  = "auto_check_location"
)

// ErrInvalidSettings is returned by SaveSettings for values that would
// break proximity checks downstream.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings are the user-tunable preferences persisted next to the crystals.
type Settings struct {
	NotificationRadius float64 `json:"notificationRadius"`
	AutoCheckLocation  bool    `json:"autoCheckLocation"`
}

// DefaultSettings returns the settings used before anything is saved.
func DefaultSettings() Settings {
	return Settings{
		NotificationRadius: DefaultNotificationRadius,
		AutoCheckLocation:  true,
	}
}

// Validate rejects negative or non-finite radii.
func (s Settings) Validate() error {
	if math.IsNaN(s.NotificationRadius) || math.IsInf(s.NotificationRadius, 0) || s.NotificationRadius < 0 {
		return fmt.Errorf("%w: notification radius %v", ErrInvalidSettings, s.NotificationRadius)
	}
	return nil
}

// GetSettings returns stored settings. Keys that were never saved keep the
// values from defaults.
func (db *DB) GetSettings(defaults Settings) (Settings, error) {
	s := defaults

	rows, err := db.Query("SELECT key, value FROM settings")
	if err != nil {
		return s, fmt.Errorf("get settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return s, fmt.Errorf("scan setting: %w", err)
		}
		switch key {
		case keyNotificationRadius:
			r, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return s, fmt.Errorf("parse %s: %w", key, err)
			}
			s.NotificationRadius = r
		case keyAutoCheckLocation:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return s, fmt.Errorf("parse %s: %w", key, err)
			}
			s.AutoCheckLocation = b
		}
	}
	return s, rows.Err()
}

// SaveSettings persists all settings in one transaction.
func (db *DB) SaveSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin settings: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	values := map[string]string{
		keyNotificationRadius: strconv.FormatFloat(s.NotificationRadius, 'f', -1, 64),
		keyAutoCheckLocation:  strconv.FormatBool(s.AutoCheckLocation),
	}
	for key, value := range values {
		if err := upsertSetting(tx, key, value, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}

func upsertSetting(tx *sql.Tx, key, value string, now int64) error {
	_, err := tx.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}
