package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/lazypower/crystals/internal/checkin"
	"github.com/lazypower/crystals/internal/position"
	"github.com/lazypower/crystals/internal/store"
	"github.com/spf13/cobra"
)

// --- export / import ---

var exportGzip bool

var exportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Write a JSON backup of every crystal (stdout by default)",
	Args:  cobra.MaximumNArgs(1),
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

		if len(args) == 0 {
			err = store.Export(cmd.OutOrStdout(), records, exportGzip)
		} else {
			compress := exportGzip || strings.HasSuffix(args[0], ".gz")
			err = writeFile(args[0], func(w io.Writer) error {
				return store.Export(w, records, compress)
			})
		}
		if err != nil {
			return err
		}
		log.Info("exported", "count", len(records))
		return nil
	},
}

// writeFile creates path and hands it to write. A failed close is reported
// like a failed write.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return write(f)
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace all crystals with a backup (plain or gzip JSON)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		result, err := store.Import(f)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()

		if err := db.Save(result.Crystals); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Imported %d crystals\n", len(result.Crystals))
		for _, reason := range result.Skipped {
			warnColor.Fprintf(out, "  skipped %s\n", reason)
		}
		return nil
	},
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many crystals are stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()

		stats, err := db.Stats()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d crystals, %s\n", stats.Count, humanize.Bytes(uint64(stats.Bytes)))
		fmt.Fprintf(cmd.OutOrStdout(), "db: %s\n", db.Path)
		return nil
	},
}

// --- settings ---

var (
	settingsRadius float64
	settingsAuto   bool
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()

		s, err := db.GetSettings(defaultSettings())
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("radius") || flags.Changed("auto") {
			if flags.Changed("radius") {
				s.NotificationRadius = settingsRadius
			}
			if flags.Changed("auto") {
				s.AutoCheckLocation = settingsAuto
			}
			if err := db.SaveSettings(s); err != nil {
				return err
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "notification radius: %gm\n", s.NotificationRadius)
		fmt.Fprintf(cmd.OutOrStdout(), "auto check location: %t\n", s.AutoCheckLocation)
		return nil
	},
}

// --- checkin ---

var checkinWatch bool

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Read the position source and report it to the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := position.NewSource(cfg.Position)
		if err != nil {
			return err
		}
		client := checkin.NewClient(cfg.ServerURL())
		if !client.Healthy(cmd.Context()) {
			return fmt.Errorf("server not reachable at %s; start it with `crystals serve`", client.URL())
		}

		out := cmd.OutOrStdout()
		if checkinWatch {
			return checkin.Watch(cmd.Context(), client, src, cfg.Position.Timeout, cfg.CheckIn.Interval, log,
				func(res *checkin.Result, err error) {
					if err == nil {
						renderCheckIn(out, res)
					}
				})
		}

		res, err := checkin.Run(cmd.Context(), client, src, cfg.Position.Timeout)
		if err != nil {
			return err
		}
		renderCheckIn(out, res)
		return nil
	},
}

func renderCheckIn(w io.Writer, res *checkin.Result) {
	switch {
	case res.PositionErr != nil:
		warnColor.Fprintf(w, "%v\n", res.PositionErr)
	case res.Alert != "":
		alertColor.Fprintln(w, res.Alert)
	default:
		fmt.Fprintf(w, "Checked in at %s, nothing within %gm\n", res.Position, res.Radius)
	}
}

func init() {
	exportCmd.Flags().BoolVarP(&exportGzip, "gzip", "z", false, "gzip the backup")
	settingsCmd.Flags().Float64Var(&settingsRadius, "radius", 0, "notification radius in meters")
	settingsCmd.Flags().BoolVar(&settingsAuto, "auto", true, "check location automatically")
	checkinCmd.Flags().BoolVarP(&checkinWatch, "watch", "w", false, "keep checking in every checkin.interval")
}
