package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lazypower/crystals/internal/geo"
)

// Crystal categories.
const (
	CategoryRestaurant = "restaurant"
	CategoryStore      = "store"
	CategoryHome       = "home"
	CategoryWork       = "work"
	CategoryOther      = "other"
)

// Categories lists every valid category in display order.
var Categories = []string{CategoryRestaurant, CategoryStore, CategoryHome, CategoryWork, CategoryOther}

var categoryNames = map[string]string{
	CategoryRestaurant: "Restaurant",
	CategoryStore:      "Store",
	CategoryHome:       "Home",
	CategoryWork:       "Work",
	CategoryOther:      "Other",
}

// ValidCategory reports whether c is one of Categories.
func ValidCategory(c string) bool {
	_, ok := categoryNames[c]
	return ok
}

// CategoryName returns the display name for a category, "Other" for unknown values.
func CategoryName(c string) string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return categoryNames[CategoryOther]
}

// Crystal is a geotagged personal note.
type Crystal struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Category  string         `json:"category"`
	Notes     string         `json:"notes,omitempty"`
	Address   string         `json:"address,omitempty"`
	Location  geo.Coordinate `json:"location"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Validate normalizes the crystal in place and rejects unusable values.
// An empty category becomes "other".
func (c *Crystal) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidCrystal)
	}
	if c.Category == "" {
		c.Category = CategoryOther
	}
	if !ValidCategory(c.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidCrystal, c.Category)
	}
	if err := c.Location.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCrystal, err)
	}
	return nil
}

const crystalColumns = `id, name, category, notes, address, lat, lng, created_at, updated_at`

// CreateCrystal inserts a new crystal. A missing ID is filled with a random UUID
// and timestamps are set to now.
func (db *DB) CreateCrystal(c *Crystal) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("create crystal: %w", err)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO crystals (`+crystalColumns+`)
		VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?)
	`, c.ID, c.Name, c.Category, c.Notes, c.Address, c.Location.Lat, c.Location.Lng, now, now)
	if err != nil {
		return fmt.Errorf("create crystal: %w", err)
	}

	c.CreatedAt = time.UnixMilli(now)
	c.UpdatedAt = c.CreatedAt
	return nil
}

// GetCrystal returns a crystal by id, or nil if not found.
func (db *DB) GetCrystal(id string) (*Crystal, error) {
	row := db.QueryRow(`SELECT `+crystalColumns+` FROM crystals WHERE id = ?`, id)
	c, err := scanCrystal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get crystal: %w", err)
	}
	return c, nil
}

// UpdateCrystal rewrites a crystal's mutable fields and bumps updated_at.
// CreatedAt is preserved from the stored row.
func (db *DB) UpdateCrystal(c *Crystal) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("update crystal: %w", err)
	}

	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		UPDATE crystals SET name = ?, category = ?, notes = NULLIF(?, ''), address = NULLIF(?, ''),
			lat = ?, lng = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, c.Category, c.Notes, c.Address, c.Location.Lat, c.Location.Lng, now, c.ID)
	if err != nil {
		return fmt.Errorf("update crystal: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("update crystal %s: %w", c.ID, ErrNotFound)
	}

	stored, err := db.GetCrystal(c.ID)
	if err != nil {
		return err
	}
	*c = *stored
	return nil
}

// DeleteCrystal removes a crystal by id.
func (db *DB) DeleteCrystal(id string) error {
	result, err := db.Exec("DELETE FROM crystals WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete crystal %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("delete crystal %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListCrystals returns every crystal in insertion order.
func (db *DB) ListCrystals() ([]Crystal, error) {
	rows, err := db.Query(`SELECT ` + crystalColumns + ` FROM crystals ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list crystals: %w", err)
	}
	defer rows.Close()

	var crystals []Crystal
	for rows.Next() {
		c, err := scanCrystal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan crystal: %w", err)
		}
		crystals = append(crystals, *c)
	}
	return crystals, rows.Err()
}

// CountCrystals returns the number of stored crystals.
func (db *DB) CountCrystals() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM crystals").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count crystals: %w", err)
	}
	return count, nil
}

// Load returns the full record set. Alias of ListCrystals for callers that
// treat the store as an opaque load/save pair.
func (db *DB) Load() ([]Crystal, error) {
	return db.ListCrystals()
}

// Save replaces the full record set in a single transaction, keeping the
// given order, ids and timestamps. Zero timestamps are set to now.
func (db *DB) Save(crystals []Crystal) error {
	for i := range crystals {
		if err := crystals[i].Validate(); err != nil {
			return fmt.Errorf("save crystal %d (%s): %w", i, crystals[i].ID, err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM crystals"); err != nil {
		return fmt.Errorf("clear crystals: %w", err)
	}

	now := time.Now()
	for i := range crystals {
		c := &crystals[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = c.CreatedAt
		}
		if _, err := tx.Exec(`
			INSERT INTO crystals (`+crystalColumns+`)
			VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?)
		`, c.ID, c.Name, c.Category, c.Notes, c.Address, c.Location.Lat, c.Location.Lng,
			c.CreatedAt.UnixMilli(), c.UpdatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("insert crystal %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCrystal(row rowScanner) (*Crystal, error) {
	var c Crystal
	var notes, address sql.NullString
	var createdAt, updatedAt int64
	if err := row.Scan(&c.ID, &c.Name, &c.Category, &notes, &address,
		&c.Location.Lat, &c.Location.Lng, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.Notes = notes.String
	c.Address = address.String
	c.CreatedAt = time.UnixMilli(createdAt)
	c.UpdatedAt = time.UnixMilli(updatedAt)
	return &c, nil
}
