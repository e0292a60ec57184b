package position

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lazypower/crystals/internal/geo"
)

// FileSource reads the last fix a location daemon wrote to Path.
// A fix older than MaxAge (by file modification time) is rejected; zero
// disables the check.
type FileSource struct {
	Path   string
	MaxAge time.Duration

	now func() time.Time
}

// Locate reads and validates the fix file.
func (f *FileSource) Locate(ctx context.Context) (geo.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return geo.Coordinate{}, err
	}

	info, err := os.Stat(f.Path)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("stat fix file: %w", err)
	}
	if f.MaxAge > 0 {
		now := time.Now
		if f.now != nil {
			now = f.now
		}
		if age := now().Sub(info.ModTime()); age > f.MaxAge {
			return geo.Coordinate{}, fmt.Errorf("fix file %s is stale (%s old)", f.Path, age.Round(time.Second))
		}
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("read fix file: %w", err)
	}
	return parseFix(data)
}
