package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/lazypower/crystals/internal/checkin"
	"github.com/lazypower/crystals/internal/engine"
	"github.com/lazypower/crystals/internal/position"
	"github.com/lazypower/crystals/internal/server"
	"github.com/lazypower/crystals/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Start the HTTP API server. With --watch the server also polls the configured position source.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "poll the position source and check in periodically")
}

func runServe(cmd *cobra.Command, args []string) error {
	var (
		src    position.Source
		client *checkin.Client
	)
	if serveWatch {
		var err error
		if src, err = position.NewSource(cfg.Position); err != nil {
			return err
		}
		client = checkin.NewClient(cfg.ServerURL())
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var ui fs.FS
	if cfg.Server.UI != "" {
		ui = os.DirFS(cfg.Server.UI)
	}

	eng := engine.New(log)
	srv := server.New(db, eng, VersionString(), server.Options{
		Logger:        log,
		Defaults:      defaultSettings(),
		PositionRate:  cfg.Server.PositionRate,
		PositionBurst: cfg.Server.PositionBurst,
		UI:            ui,
	})

	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		log.Info("crystals serving", "addr", addr, "db", db.Path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if src != nil {
		g.Go(func() error {
			return checkin.Watch(ctx, client, src, cfg.Position.Timeout, cfg.CheckIn.Interval, log, logResult)
		})
	}

	return g.Wait()
}

func logResult(res *checkin.Result, err error) {
	switch {
	case err != nil:
		// already logged by the watcher
	case res.PositionErr != nil:
		log.Warn("position unavailable", "err", res.PositionErr)
	case res.Alert != "":
		log.Info("nearby", "alert", res.Alert, "count", len(res.Nearby))
	default:
		log.Debug("checked in", "lat", res.Position.Lat, "lng", res.Position.Lng)
	}
}

// defaultSettings seeds stored settings from config.
func defaultSettings() store.Settings {
	s := store.DefaultSettings()
	s.NotificationRadius = cfg.Proximity.NotificationRadius
	return s
}

// openDB is a helper that opens the database for CLI commands.
func openDB() (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}
