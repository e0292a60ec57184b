package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lazypower/crystals/internal/config"
	"github.com/lazypower/crystals/internal/logging"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	logFormat  string

	cfg = config.Default()
	log = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "crystals",
	Short: "Geotagged personal notes with proximity alerts",
	Long:  "Crystals pins notes to places and tells you when you are near one. Single Go binary backed by SQLite.",

	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.crystals/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkinCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(nearbyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(settingsCmd)
}

// setup loads configuration and installs the logger before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}

	l, err := logging.New(level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	log = l
	slog.SetDefault(l)
	return nil
}
