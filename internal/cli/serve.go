package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"driver-engagement-audit/internal/metrics"
	"driver-engagement-audit/internal/server"
)

type ServeCmd struct{}

func NewServeCmd() *ServeCmd {
	return &ServeCmd{}
}

func (c *ServeCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API and Prometheus metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				if cfg.Listen, err = cmd.Flags().GetString("listen"); err != nil {
					return fmt.Errorf("failed to get listen flag: %w", err)
				}
			}
			topN, err := cmd.Flags().GetInt("top")
			if err != nil {
				return fmt.Errorf("failed to get top flag: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

			d, closeAll, err := newDashboard(ctx, log, cfg)
			if err != nil {
				return err
			}
			defer closeAll()

			// A failed first load is retried on the first request.
			if _, err := d.Load(ctx); err != nil {
				log.Warn("initial load failed", "error", err)
			}

			srv, err := server.New(server.Config{Logger: log, Dashboard: d, DefaultTopN: topN})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx, cfg.Listen)
		},
	}

	cmd.Flags().String("listen", "", "address to listen on (overrides config)")
	cmd.Flags().Int("top", 20, "default ranking size")
	return cmd
}
