// Command scheduler runs the message scheduler and its maintenance commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	scheduler "github.com/jdziat/simple-message-scheduler"
	"github.com/jdziat/simple-message-scheduler/pkg/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "scheduler",
		Short:         "Schedule chat messages, videos and emails for later delivery",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newListCmd(opts),
		newCancelCmd(opts),
		newSMTPCheckCmd(opts),
		newBridgeStatusCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openApp builds the application for one-shot commands. Logs go to stderr so
// command output stays clean.
func (o *rootOptions) openApp(cmd *cobra.Command) (*scheduler.App, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return scheduler.NewApp(cfg, scheduler.WithLogWriter(cmd.ErrOrStderr()))
}

func closeApp(cmd *cobra.Command, app *scheduler.App) {
	if err := app.Shutdown(context.WithoutCancel(cmd.Context())); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "shutdown:", err)
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and deliver due jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			app, err := scheduler.NewApp(cfg,
				scheduler.WithLogWriter(cmd.ErrOrStderr()),
				scheduler.WithConfigPath(opts.configPath),
			)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// NewApp migrates on open.
			app, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(cmd, app)
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", app.Config.Database.Driver)
			return nil
		},
	}
}
