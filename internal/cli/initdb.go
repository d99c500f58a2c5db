package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"driver-engagement-audit/internal/source"
)

type InitDBCmd struct{}

func NewInitDBCmd() *InitDBCmd {
	return &InitDBCmd{}
}

func (c *InitDBCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the Postgres sheet store and seed it from a CSV directory when empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			from, err := cmd.Flags().GetString("from")
			if err != nil {
				return fmt.Errorf("failed to get from flag: %w", err)
			}
			if from == "" {
				from = cfg.Source.CSVDir
			}
			if cfg.Source.DBURL == "" {
				return errors.New("init-db requires DRIVER_ENGAGEMENT_DB_URL or DATABASE_URL")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			csvDir, err := source.NewCSVDir(from)
			if err != nil {
				return err
			}
			pg, err := source.OpenPostgres(ctx, source.PostgresConfig{
				Logger: log,
				URL:    cfg.Source.DBURL,
				Schema: cfg.Source.DBSchema,
			})
			if err != nil {
				return fmt.Errorf("failed to open postgres: %w", err)
			}
			defer pg.Close()

			sheets := []string{cfg.Sheets.Availability, cfg.Sheets.Deliveries, cfg.Sheets.StableRegistry, cfg.Sheets.UpdateRegistry}
			seeded, err := pg.Seed(ctx, csvDir, sheets)
			if err != nil {
				return err
			}
			if seeded {
				log.Info("database seeded", "schema", cfg.Source.DBSchema, "from", from)
			}
			return nil
		},
	}

	cmd.Flags().String("from", "", "CSV directory to seed from (defaults to the configured csv_dir)")
	return cmd
}
