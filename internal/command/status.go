package command

import (
	"fmt"

	"github.com/FocalizeApp/focalize-daemon/internal/config"
	"github.com/FocalizeApp/focalize-daemon/internal/daemon"
	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the daemon is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if daemon.IsLocked(cfg.StorePath) {
				fmt.Fprintln(cmd.OutOrStdout(), "running")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stopped")
			return nil
		},
	}
}
