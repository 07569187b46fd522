package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	scheduler "github.com/jdziat/simple-message-scheduler"
	"github.com/jdziat/simple-message-scheduler/pkg/transport/bridge"
	"github.com/jdziat/simple-message-scheduler/pkg/transport/mail"
)

const checkTimeout = 15 * time.Second

func newSMTPCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "smtp-check",
		Short: "Connect and authenticate to the SMTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			sender := mail.NewSender(scheduler.MailConfig(cfg))

			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()
			if err := sender.Check(ctx); err != nil {
				fmt.Fprintf(out, "SMTP check failed: %v\n\nCommon providers:\n", err)
				for _, p := range mail.Providers() {
					fmt.Fprintf(out, "  %-8s %s:%d  %s\n", p.Name, p.Host, p.Port, p.Description)
				}
				return err
			}
			fmt.Fprintf(out, "SMTP OK: %s as %s\n", sender.Config().Addr(), sender.Config().Sender())
			return nil
		},
	}
}

func newBridgeStatusCmd(opts *rootOptions) *cobra.Command {
	var showChats bool
	cmd := &cobra.Command{
		Use:   "bridge-status",
		Short: "Show chat bridge readiness and available chats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			client := bridge.New(cfg.Bridge.URL)

			ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
			defer cancel()
			st, err := client.Status(ctx)
			if err != nil {
				return fmt.Errorf("bridge at %s: %w", client.BaseURL(), err)
			}
			fmt.Fprintf(out, "bridge %s: status=%s ready=%t\n", client.BaseURL(), st.Status, st.Ready)
			if !showChats || !st.Ready {
				return nil
			}

			chats, err := client.Chats(ctx)
			if err != nil {
				return err
			}
			for _, c := range chats {
				kind := "chat"
				if c.IsGroup {
					kind = "group"
				}
				fmt.Fprintf(out, "  %-5s %s  %s (%d participants)\n", kind, c.ID, c.Name, c.Participants)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showChats, "chats", true, "list chats when the bridge is ready")
	return cmd
}
