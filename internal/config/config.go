// Package config loads dashboard settings from a YAML file, a .env file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"driver-engagement-audit/internal/availability"
	"driver-engagement-audit/internal/dashboard"
	"driver-engagement-audit/internal/engagement"
	"driver-engagement-audit/internal/source"
)

const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"

	DefaultListen = ":8080"
	DefaultCSVDir = "data"
)

type SourceConfig struct {
	Kind     string        `yaml:"kind"`
	CSVDir   string        `yaml:"csv_dir"`
	DBURL    string        `yaml:"db_url"`
	DBSchema string        `yaml:"db_schema"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type ShiftConfig struct {
	AMWindow  string `yaml:"am_window"`
	PM1Window string `yaml:"pm1_window"`
}

type Config struct {
	Source SourceConfig      `yaml:"source"`
	Sheets dashboard.Sheets  `yaml:"sheets"`
	Shifts ShiftConfig       `yaml:"shifts"`
	Policy engagement.Policy `yaml:"policy"`
	Listen string            `yaml:"listen"`
}

func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Kind:     SourceCSV,
			CSVDir:   DefaultCSVDir,
			DBSchema: source.DefaultSchema,
			CacheTTL: source.DefaultCacheTTL,
		},
		Sheets: dashboard.DefaultSheets(),
		Shifts: ShiftConfig{
			AMWindow:  availability.DefaultAMWindow,
			PM1Window: availability.DefaultPM1Window,
		},
		Policy: engagement.DefaultPolicy(),
		Listen: DefaultListen,
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error. envFile, when set, is loaded into the
// process environment first without overriding variables already set.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if url := dbURLFromEnv(); url != "" {
		c.Source.DBURL = url
	}
	if kind := strings.TrimSpace(os.Getenv("DRIVER_ENGAGEMENT_SOURCE")); kind != "" {
		c.Source.Kind = kind
	}
	if dir := strings.TrimSpace(os.Getenv("DRIVER_ENGAGEMENT_CSV_DIR")); dir != "" {
		c.Source.CSVDir = dir
	}
	if schema := strings.TrimSpace(os.Getenv("DRIVER_ENGAGEMENT_DB_SCHEMA")); schema != "" {
		c.Source.DBSchema = schema
	}
	if listen := strings.TrimSpace(os.Getenv("DRIVER_ENGAGEMENT_LISTEN")); listen != "" {
		c.Listen = listen
	}
}

func dbURLFromEnv() string {
	if value := strings.TrimSpace(os.Getenv("DRIVER_ENGAGEMENT_DB_URL")); value != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv("DATABASE_URL"))
}

// Validate fills zero values with defaults and rejects invalid settings.
func (c *Config) Validate() error {
	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	switch c.Source.Kind {
	case "":
		c.Source.Kind = SourceCSV
		fallthrough
	case SourceCSV:
		if c.Source.CSVDir == "" {
			c.Source.CSVDir = DefaultCSVDir
		}
	case SourcePostgres:
		if c.Source.DBURL == "" {
			return errors.New("postgres source requires DRIVER_ENGAGEMENT_DB_URL or DATABASE_URL")
		}
	default:
		return fmt.Errorf("invalid source kind: %s", c.Source.Kind)
	}
	if c.Source.DBSchema == "" {
		c.Source.DBSchema = source.DefaultSchema
	}
	if c.Source.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative, got %s", c.Source.CacheTTL)
	}
	if c.Source.CacheTTL == 0 {
		c.Source.CacheTTL = source.DefaultCacheTTL
	}

	if c.Shifts.AMWindow == "" {
		c.Shifts.AMWindow = availability.DefaultAMWindow
	}
	if c.Shifts.PM1Window == "" {
		c.Shifts.PM1Window = availability.DefaultPM1Window
	}
	if c.Shifts.AMWindow == c.Shifts.PM1Window {
		return fmt.Errorf("am and pm1 windows must differ, both are %q", c.Shifts.AMWindow)
	}

	if err := c.Policy.Validate(); err != nil {
		return err
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}

	defaults := dashboard.DefaultSheets()
	for _, sheet := range []struct {
		value    *string
		fallback string
	}{
		{&c.Sheets.Availability, defaults.Availability},
		{&c.Sheets.Deliveries, defaults.Deliveries},
		{&c.Sheets.StableRegistry, defaults.StableRegistry},
		{&c.Sheets.UpdateRegistry, defaults.UpdateRegistry},
	} {
		if *sheet.value == "" {
			*sheet.value = sheet.fallback
		}
	}
	return nil
}
