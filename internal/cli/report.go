package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"driver-engagement-audit/internal/availability"
	"driver-engagement-audit/internal/engagement"
	"driver-engagement-audit/internal/report"
)

type ReportCmd struct{}

func NewReportCmd() *ReportCmd {
	return &ReportCmd{}
}

func (c *ReportCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Load every sheet once and print the engagement report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			opts, err := reportOptions(cmd)
			if err != nil {
				return err
			}
			jsonPath, err := cmd.Flags().GetString("json")
			if err != nil {
				return fmt.Errorf("failed to get json flag: %w", err)
			}
			csvPath, err := cmd.Flags().GetString("csv")
			if err != nil {
				return fmt.Errorf("failed to get csv flag: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			d, closeAll, err := newDashboard(ctx, log, cfg)
			if err != nil {
				return err
			}
			defer closeAll()

			result, err := d.Load(ctx)
			if err != nil {
				return err
			}

			report.Print(cmd.OutOrStdout(), result, opts)

			if jsonPath != "" {
				if err := report.WriteJSON(result, opts, jsonPath); err != nil {
					return fmt.Errorf("failed to write json: %w", err)
				}
				log.Info("wrote json report", "path", jsonPath)
			}
			if csvPath != "" {
				if err := report.WriteSummaryCSVFile(result, opts, csvPath); err != nil {
					return fmt.Errorf("failed to write csv: %w", err)
				}
				log.Info("wrote summary csv", "path", csvPath)
			}
			return nil
		},
	}

	cmd.Flags().StringSlice("category", nil, "only include these categories (Engaged, Intermediate, Risk of Churn, Inactive)")
	cmd.Flags().String("cluster", engagement.AllClusters, "only include drivers in this cluster")
	cmd.Flags().StringSlice("shift", nil, "only include availability in these shifts (AM, PM1, AM_PM1, OTHER, NONE)")
	cmd.Flags().StringSlice("vehicle-type", nil, "only include these vehicle types")
	cmd.Flags().Float64("min-ratio", 0, "minimum availability-to-delivery ratio")
	cmd.Flags().Int("top", 10, "number of drivers in the ranking (0 for all)")
	cmd.Flags().String("json", "", "optional path to write the full load as JSON")
	cmd.Flags().String("csv", "", "optional path to write the filtered summary as CSV")

	return cmd
}

func reportOptions(cmd *cobra.Command) (report.Options, error) {
	flags := cmd.Flags()
	var opts report.Options

	categories, err := flags.GetStringSlice("category")
	if err != nil {
		return opts, fmt.Errorf("failed to get category flag: %w", err)
	}
	for _, raw := range categories {
		category, ok := engagement.ParseCategory(raw)
		if !ok {
			return opts, fmt.Errorf("invalid --category value: %s", raw)
		}
		opts.Filter.Categories = append(opts.Filter.Categories, category)
	}

	shifts, err := flags.GetStringSlice("shift")
	if err != nil {
		return opts, fmt.Errorf("failed to get shift flag: %w", err)
	}
	for _, raw := range shifts {
		shift, ok := availability.ParseShift(raw)
		if !ok {
			return opts, fmt.Errorf("invalid --shift value: %s", raw)
		}
		opts.Filter.Shifts = append(opts.Filter.Shifts, shift)
	}

	if opts.Filter.Cluster, err = flags.GetString("cluster"); err != nil {
		return opts, fmt.Errorf("failed to get cluster flag: %w", err)
	}
	if opts.Filter.VehicleTypes, err = flags.GetStringSlice("vehicle-type"); err != nil {
		return opts, fmt.Errorf("failed to get vehicle-type flag: %w", err)
	}
	if opts.MinRatio, err = flags.GetFloat64("min-ratio"); err != nil {
		return opts, fmt.Errorf("failed to get min-ratio flag: %w", err)
	}
	opts.Filter.MinRatio = opts.MinRatio
	if opts.TopN, err = flags.GetInt("top"); err != nil {
		return opts, fmt.Errorf("failed to get top flag: %w", err)
	}
	if opts.TopN < 0 {
		return opts, errors.New("--top must not be negative")
	}
	return opts, nil
}
