package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"driver-engagement-audit/internal/contact"
)

type ContactCmd struct{}

func NewContactCmd() *ContactCmd {
	return &ContactCmd{}
}

func (c *ContactCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact <driver_id>",
		Short: "Record a contact outcome for a queued driver in the stable registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rawStatus, err := cmd.Flags().GetString("status")
			if err != nil {
				return fmt.Errorf("failed to get status flag: %w", err)
			}
			status, err := contact.ParseStatus(rawStatus)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			d, closeAll, err := newDashboard(ctx, log, cfg)
			if err != nil {
				return err
			}
			defer closeAll()

			if _, err := d.Load(ctx); err != nil {
				return err
			}
			stable, err := d.MarkContact(ctx, args[0], status)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Driver %s marked %q; stable registry now has %d drivers.\n", args[0], status, stable.Len())
			return nil
		},
	}

	cmd.Flags().StringP("status", "s", string(contact.StatusContacted), `contact outcome ("Contacted" or "Not Interested")`)
	return cmd
}
