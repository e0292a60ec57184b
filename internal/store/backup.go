package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/lazypower/crystals/internal/geo"
)

// Export writes crystals as an indented JSON array, gzip-compressed when compress is set.
func Export(w io.Writer, crystals []Crystal, compress bool) error {
	if crystals == nil {
		crystals = []Crystal{}
	}

	if compress {
		gz := gzip.NewWriter(w)
		if err := writeJSON(gz, crystals); err != nil {
			gz.Close()
			return err
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("close gzip: %w", err)
		}
		return nil
	}
	return writeJSON(w, crystals)
}

func writeJSON(w io.Writer, crystals []Crystal) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(crystals); err != nil {
		return fmt.Errorf("encode crystals: %w", err)
	}
	return nil
}

// ImportResult is the outcome of parsing a backup.
type ImportResult struct {
	Crystals []Crystal
	Skipped  []string // one reason per rejected entry
}

// importEntry accepts both our export format and the original browser
// export, whose ids are numeric millisecond timestamps.
type importEntry struct {
	ID        json.RawMessage `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Notes     string          `json:"notes"`
	Address   string          `json:"address"`
	Location  *geo.Coordinate `json:"location"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Import parses a backup produced by Export (plain or gzip). Malformed
// entries are skipped and reported rather than failing the whole file.
func Import(r io.Reader) (*ImportResult, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(src).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}

	result := &ImportResult{}
	seen := make(map[string]bool, len(raw))
	for i, msg := range raw {
		c, err := parseImportEntry(msg)
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("entry %d: %v", i, err))
			continue
		}
		if c.ID != "" && seen[c.ID] {
			result.Skipped = append(result.Skipped, fmt.Sprintf("entry %d: duplicate id %s", i, c.ID))
			continue
		}
		seen[c.ID] = true
		result.Crystals = append(result.Crystals, c)
	}
	return result, nil
}

func parseImportEntry(msg json.RawMessage) (Crystal, error) {
	var e importEntry
	if err := json.Unmarshal(msg, &e); err != nil {
		return Crystal{}, err
	}
	if e.Location == nil {
		return Crystal{}, fmt.Errorf("missing location")
	}

	id, err := parseID(e.ID)
	if err != nil {
		return Crystal{}, err
	}

	c := Crystal{
		ID:        id,
		Name:      e.Name,
		Category:  e.Category,
		Notes:     e.Notes,
		Address:   e.Address,
		Location:  *e.Location,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if err := c.Validate(); err != nil {
		return Crystal{}, err
	}
	return c, nil
}

func parseID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid id %s", raw)
	}
	return n.String(), nil
}

// Stats summarizes the record set.
type Stats struct {
	Count int `json:"count"`
	Bytes int `json:"bytes"` // size of the compact JSON encoding
}

// Stats returns the crystal count and serialized size.
func (db *DB) Stats() (Stats, error) {
	crystals, err := db.ListCrystals()
	if err != nil {
		return Stats{}, err
	}
	if crystals == nil {
		crystals = []Crystal{}
	}
	data, err := json.Marshal(crystals)
	if err != nil {
		return Stats{}, fmt.Errorf("encode crystals: %w", err)
	}
	return Stats{Count: len(crystals), Bytes: len(data)}, nil
}
