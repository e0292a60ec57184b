package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/lazypower/crystals/internal/engine"
	"github.com/lazypower/crystals/internal/geo"
	"github.com/lazypower/crystals/internal/store"
)

var (
	alertColor = color.New(color.FgGreen, color.Bold)
	dimColor   = color.New(color.Faint)
	warnColor  = color.New(color.FgYellow)
)

func renderList(w io.Writer, matches []engine.Match, sorted bool, now time.Time) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No crystals found.")
		return
	}
	if !sorted {
		warnColor.Fprintln(w, "Position unavailable; showing crystals in saved order.")
		fmt.Fprintln(w)
	}

	for i, m := range matches {
		c := m.Crystal
		fmt.Fprintf(w, "%d. %s [%s]", i+1, c.Name, store.CategoryName(c.Category))
		if sorted {
			fmt.Fprintf(w, " %s", geo.FormatDistance(m.DistanceMeters))
		}
		fmt.Fprintln(w)
		dimColor.Fprintf(w, "   %s  created %s\n", c.ID, humanize.RelTime(c.CreatedAt, now, "ago", "from now"))
		if c.Notes != "" {
			fmt.Fprintf(w, "   %s\n", c.Notes)
		}
	}
}

func renderCrystal(w io.Writer, c *store.Crystal, now time.Time) {
	fmt.Fprintf(w, "%s [%s]\n", c.Name, store.CategoryName(c.Category))
	fmt.Fprintf(w, "  id:       %s\n", c.ID)
	fmt.Fprintf(w, "  location: %s\n", c.Location)
	if c.Address != "" {
		fmt.Fprintf(w, "  address:  %s\n", c.Address)
	}
	fmt.Fprintf(w, "  created:  %s\n", humanize.RelTime(c.CreatedAt, now, "ago", "from now"))
	if !c.UpdatedAt.Equal(c.CreatedAt) {
		fmt.Fprintf(w, "  updated:  %s\n", humanize.RelTime(c.UpdatedAt, now, "ago", "from now"))
	}
	if c.Notes != "" {
		fmt.Fprintf(w, "\n%s\n", c.Notes)
	}
}

func renderNearby(w io.Writer, matches []engine.Match, radius float64) {
	if len(matches) == 0 {
		fmt.Fprintf(w, "Nothing within %gm.\n", radius)
		return
	}

	near := make([]store.Crystal, len(matches))
	for i, m := range matches {
		near[i] = m.Crystal
	}
	alertColor.Fprintln(w, engine.AlertMessage(near))
	for _, m := range matches {
		fmt.Fprintf(w, "  %s [%s] %s\n", m.Crystal.Name, store.CategoryName(m.Crystal.Category), geo.FormatDistance(m.DistanceMeters))
	}
}

func renderGroups(w io.Writer, groups []engine.Group) {
	total := 0
	for _, g := range groups {
		total += len(g.Members)
	}
	fmt.Fprintf(w, "%d markers for %d crystals\n", len(groups), total)

	for _, g := range groups {
		names := make([]string, len(g.Members))
		for i, m := range g.Members {
			names[i] = m.Name
		}
		fmt.Fprintf(w, "  %s  %s\n", g.Anchor, strings.Join(names, ", "))
	}
}
