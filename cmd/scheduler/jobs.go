package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdziat/simple-message-scheduler/pkg/security"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending jobs in fire order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			loc, err := app.Config.Location()
			if err != nil {
				return err
			}
			pending, err := app.Service.ListPending(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tRECIPIENT\tSCHEDULED\tCONTENT")
			for _, job := range pending {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
					job.ID, job.Kind, job.Recipient,
					job.ScheduledTime.In(loc).Format(time.RFC3339),
					security.TruncateForDisplay(job.Content))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pending\n", len(pending))
			return nil
		},
	}
}

func newCancelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid job id %q", args[0])
			}

			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)

			cancelled, err := app.Service.Cancel(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !cancelled {
				return fmt.Errorf("job %d is not pending", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled job %d\n", id)
			return nil
		},
	}
}
