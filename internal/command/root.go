package command

import (
	"os"

	"github.com/spf13/cobra"
)

const AppName = "focalized"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Focalize background daemon",
		Long:          "Focalized keeps the Focalize client current: it polls the notification feed and the messaging network, raises desktop notifications, and serves a local command API for the UI.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.AddCommand(
		NewRunCmd(),
		NewStatusCmd(),
		NewTokenCmd(),
	)

	return cmd
}

func Execute() error {
	return NewRootCmd(Version).Execute()
}
