package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all crystals configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Proximity ProximityConfig `yaml:"proximity"`
	Position  PositionConfig  `yaml:"position"`
	CheckIn   CheckInConfig   `yaml:"checkin"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
	URL  string `yaml:"url"` // where check-in clients reach the server
	UI   string `yaml:"ui"`  // directory holding a map front end, optional

	// Position updates accepted per second, with burst.
	PositionRate  float64 `yaml:"position_rate"`
	PositionBurst int     `yaml:"position_burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ProximityConfig struct {
	// Seeds the stored settings on first run.
	NotificationRadius float64 `yaml:"notification_radius"`
}

type PositionConfig struct {
	Provider string        `yaml:"provider"` // "static", "file", "command"
	Timeout  time.Duration `yaml:"timeout"`

	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`

	File   string        `yaml:"file"`
	MaxAge time.Duration `yaml:"max_age"`

	Command string   `yaml:"command"` // e.g. "termux-location"
	Args    []string `yaml:"args"`
}

type CheckInConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:          "127.0.0.1",
			Port:          37778,
			PositionRate:  2,
			PositionBurst: 5,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Proximity: ProximityConfig{
			NotificationRadius: 100,
		},
		Position: PositionConfig{
			Provider: "file",
			Timeout:  10 * time.Second,
			MaxAge:   5 * time.Minute,
		},
		CheckIn: CheckInConfig{
			Interval: time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// ServerURL returns the URL check-in clients use, derived from the listen
// address when not set.
func (c *Config) ServerURL() string {
	if c.Server.URL != "" {
		return c.Server.URL
	}
	return "http://" + c.ListenAddr()
}

// DefaultPath returns ~/.crystals/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".crystals", "config.yaml")
}

// Load reads the YAML file at path over the defaults, then applies .env and
// CRYSTALS_* environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env never overrides variables already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("CRYSTALS_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("CRYSTALS_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("CRYSTALS_BIND"); v != "" {
		c.Server.Bind = v
	}
	if v := os.Getenv("CRYSTALS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CRYSTALS_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("CRYSTALS_NOTIFICATION_RADIUS"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CRYSTALS_NOTIFICATION_RADIUS: %w", err)
		}
		c.Proximity.NotificationRadius = r
	}
	if v := os.Getenv("CRYSTALS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate reports the first invalid value.
func (c *Config) Validate() error {
	r := c.Proximity.NotificationRadius
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return fmt.Errorf("proximity.notification_radius must be a finite non-negative number, got %v", r)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.PositionRate <= 0 || c.Server.PositionBurst < 1 {
		return fmt.Errorf("server.position_rate and position_burst must be positive")
	}
	if c.Position.Timeout <= 0 {
		return fmt.Errorf("position.timeout must be positive, got %s", c.Position.Timeout)
	}
	if c.CheckIn.Interval <= 0 {
		return fmt.Errorf("checkin.interval must be positive, got %s", c.CheckIn.Interval)
	}
	switch c.Position.Provider {
	case "static", "file", "command":
	default:
		return fmt.Errorf("unknown position provider: %q", c.Position.Provider)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %q", c.Log.Format)
	}
	return nil
}
