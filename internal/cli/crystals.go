package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lazypower/crystals/internal/engine"
	"github.com/lazypower/crystals/internal/geo"
	"github.com/lazypower/crystals/internal/position"
	"github.com/lazypower/crystals/internal/store"
	"github.com/spf13/cobra"
)

var (
	atFlag       string
	categoryFlag string
	notesFlag    string
	addressFlag  string
	nameFlag     string
	radiusFlag   float64
)

// parseAt parses "lat,lng".
func parseAt(s string) (geo.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Coordinate{}, fmt.Errorf("expected lat,lng, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("longitude: %w", err)
	}
	c := geo.Coordinate{Lat: lat, Lng: lng}
	return c, c.Validate()
}

// localEngine builds an engine fed with --at or one read of the configured
// position source. A failed read leaves it unresolved.
func localEngine(cmd *cobra.Command) (*engine.Engine, error) {
	eng := engine.New(log)

	if atFlag != "" {
		at, err := parseAt(atFlag)
		if err != nil {
			return nil, fmt.Errorf("--at: %w", err)
		}
		return eng, eng.OnPositionUpdate(at)
	}

	src, err := position.NewSource(cfg.Position)
	if err != nil {
		return nil, err
	}
	at, err := position.Acquire(cmd.Context(), src, cfg.Position.Timeout)
	if err != nil {
		log.Debug("no position", "err", err)
		eng.OnPositionFailure(err)
		return eng, nil
	}
	return eng, eng.OnPositionUpdate(at)
}

var dropCmd = &cobra.Command{
	Use:   "drop NAME",
	Short: "Drop a crystal at your current position",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDrop,
}

func runDrop(cmd *cobra.Command, args []string) error {
	eng, err := localEngine(cmd)
	if err != nil {
		return err
	}
	at, err := eng.Center()
	if err != nil {
		return fmt.Errorf("%w; pass --at lat,lng", err)
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	c := &store.Crystal{
		Name:     strings.Join(args, " "),
		Category: categoryFlag,
		Notes:    notesFlag,
		Address:  addressFlag,
		Location: at,
	}
	if err := db.CreateCrystal(c); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Dropped %s at %s (%s)\n", c.Name, c.Location, c.ID)
	return nil
}

var listCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List crystals, nearest first when your position is known",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	records, err := db.Load()
	if err != nil {
		return err
	}
	eng, err := localEngine(cmd)
	if err != nil {
		return err
	}

	filtered := engine.Filter(records, strings.Join(args, " "), categoryFlag)
	matches, sorted := eng.SortedList(filtered)
	renderList(cmd.OutOrStdout(), matches, sorted, time.Now())
	return nil
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one crystal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()

		c, err := db.GetCrystal(args[0])
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("%s: %w", args[0], store.ErrNotFound)
		}
		renderCrystal(cmd.OutOrStdout(), c, time.Now())
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Change a crystal's fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

func runEdit(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	c, err := db.GetCrystal(args[0])
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("%s: %w", args[0], store.ErrNotFound)
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		c.Name = nameFlag
	}
	if flags.Changed("category") {
		c.Category = categoryFlag
	}
	if flags.Changed("notes") {
		c.Notes = notesFlag
	}
	if flags.Changed("address") {
		c.Address = addressFlag
	}
	if flags.Changed("at") {
		at, err := parseAt(atFlag)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		c.Location = at
	}

	if err := db.UpdateCrystal(c); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", c.Name)
	return nil
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a crystal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()

		if err := db.DeleteCrystal(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Show crystals collapsed into map markers",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()

		records, err := db.Load()
		if err != nil {
			return err
		}
		renderGroups(cmd.OutOrStdout(), engine.New(log).GroupsForDisplay(records))
		return nil
	},
}

var nearbyCmd = &cobra.Command{
	Use:   "nearby",
	Short: "Show crystals within the notification radius",
	RunE:  runNearby,
}

func runNearby(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	records, err := db.Load()
	if err != nil {
		return err
	}
	settings, err := db.GetSettings(defaultSettings())
	if err != nil {
		return err
	}
	radius := settings.NotificationRadius
	if cmd.Flags().Changed("radius") {
		radius = radiusFlag
	}

	eng, err := localEngine(cmd)
	if err != nil {
		return err
	}
	near, err := eng.CheckNearby(records, radius)
	if errors.Is(err, engine.ErrPositionUnavailable) {
		if f := eng.LastFailure(); f != nil {
			return fmt.Errorf("%w; pass --at lat,lng", f.Err)
		}
		return fmt.Errorf("%w; pass --at lat,lng", err)
	}
	if err != nil {
		return err
	}

	at, _ := eng.Center()
	renderNearby(cmd.OutOrStdout(), engine.SortByDistance(at, near), radius)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{dropCmd, listCmd, editCmd, nearbyCmd} {
		c.Flags().StringVar(&atFlag, "at", "", "position as lat,lng instead of the position source")
	}
	for _, c := range []*cobra.Command{dropCmd, listCmd, editCmd} {
		c.Flags().StringVarP(&categoryFlag, "category", "c", "", "category: "+strings.Join(store.Categories, ", "))
	}
	for _, c := range []*cobra.Command{dropCmd, editCmd} {
		c.Flags().StringVarP(&notesFlag, "notes", "n", "", "notes")
		c.Flags().StringVar(&addressFlag, "address", "", "address")
	}
	editCmd.Flags().StringVar(&nameFlag, "name", "", "new name")
	nearbyCmd.Flags().Float64VarP(&radiusFlag, "radius", "r", 0, "radius in meters (default from settings)")
}
