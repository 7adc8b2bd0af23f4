package command

import (
	"fmt"
	"time"

	"github.com/FocalizeApp/focalize-daemon/internal/config"
	"github.com/FocalizeApp/focalize-daemon/internal/ipc"
	"github.com/spf13/cobra"
)

// NewTokenCmd creates the token command. The UI process calls this once
// at startup to obtain a bearer token for the command API.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the command API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			token, err := ipc.MintToken(cfg.IPCSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	return cmd
}
