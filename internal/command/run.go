package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/FocalizeApp/focalize-daemon/internal/config"
	"github.com/FocalizeApp/focalize-daemon/internal/daemon"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		Long: `Start the daemon and block until interrupted.

The daemon:
- Polls the notification feed and merges pages into the local cache
- Polls the messaging network and notifies on unread messages
- Tracks pending follow/collect actions until they settle
- Serves the local command API for the UI process

Only one daemon can run per store (enforced via lock file).
Use Ctrl+C or SIGTERM to gracefully shut down.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			d, err := daemon.Build(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			if err := d.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon started (command API on %s)\n", cfg.IPCAddr)

			<-sigCh
			fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")

			if err := d.Stop(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
			return nil
		},
	}
}
