package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"driver-engagement-audit/internal/config"
	"driver-engagement-audit/internal/dashboard"
	"driver-engagement-audit/internal/source"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func Run() ExitCode {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCodeError
	}
	return exitCodeSuccess
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "driver-engagement",
		Short:         "Driver engagement audit over availability, delivery and registry sheets.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "set debug logging level")
	flags.StringP("config", "c", "driver-engagement.yaml", "path to the YAML config file")
	flags.String("env-file", ".env", "path to a .env file loaded before reading the environment")
	flags.String("source", "", "sheet source: csv or postgres (overrides config)")
	flags.String("csv-dir", "", "directory holding <sheet>.csv files (overrides config)")
	flags.Duration("cache-ttl", 0, "how long sheet reads are reused (overrides config)")

	rootCmd.AddCommand(
		NewReportCmd().Command(),
		NewContactCmd().Command(),
		NewServeCmd().Command(),
		NewInitDBCmd().Command(),
	)

	return rootCmd
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// loadConfig reads the config file and environment, then applies the root
// flags the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	flags := cmd.Root().PersistentFlags()
	verbose, err := flags.GetBool("verbose")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	path, err := flags.GetString("config")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	envFile, err := flags.GetString("env-file")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get env-file flag: %w", err)
	}

	cfg, err := config.Load(path, envFile)
	if err != nil {
		return nil, nil, err
	}
	if flags.Changed("source") {
		cfg.Source.Kind, _ = flags.GetString("source")
	}
	if flags.Changed("csv-dir") {
		cfg.Source.CSVDir, _ = flags.GetString("csv-dir")
	}
	if flags.Changed("cache-ttl") {
		cfg.Source.CacheTTL, _ = flags.GetDuration("cache-ttl")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, newLogger(verbose), nil
}

// openProvider builds the configured sheet source behind the read cache.
// The returned close func releases the underlying connection.
func openProvider(ctx context.Context, log *slog.Logger, cfg *config.Config) (*source.Cached, func(), error) {
	switch cfg.Source.Kind {
	case config.SourcePostgres:
		pg, err := source.OpenPostgres(ctx, source.PostgresConfig{
			Logger: log,
			URL:    cfg.Source.DBURL,
			Schema: cfg.Source.DBSchema,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres source: %w", err)
		}
		return source.NewCached(pg, cfg.Source.CacheTTL), func() { _ = pg.Close() }, nil
	default:
		dir, err := source.NewCSVDir(cfg.Source.CSVDir)
		if err != nil {
			return nil, nil, err
		}
		return source.NewCached(dir, cfg.Source.CacheTTL), func() {}, nil
	}
}

func newDashboard(ctx context.Context, log *slog.Logger, cfg *config.Config) (*dashboard.Dashboard, func(), error) {
	provider, closeProvider, err := openProvider(ctx, log, cfg)
	if err != nil {
		return nil, nil, err
	}
	d, err := dashboard.New(dashboard.Config{
		Logger:    log,
		Provider:  provider,
		Sheets:    cfg.Sheets,
		AMWindow:  cfg.Shifts.AMWindow,
		PM1Window: cfg.Shifts.PM1Window,
		Policy:    cfg.Policy,
	})
	if err != nil {
		closeProvider()
		return nil, nil, err
	}
	return d, func() {
		d.Close()
		closeProvider()
	}, nil
}
