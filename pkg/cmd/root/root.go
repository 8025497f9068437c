package root

import (
	"github.com/spf13/cobra"

	diagnosticsCmd "github.com/afadesigns/rtx/pkg/cmd/diagnostics"
	listmanagersCmd "github.com/afadesigns/rtx/pkg/cmd/listmanagers"
	preupgradeCmd "github.com/afadesigns/rtx/pkg/cmd/preupgrade"
	reportCmd "github.com/afadesigns/rtx/pkg/cmd/report"
	scanCmd "github.com/afadesigns/rtx/pkg/cmd/scan"
	versionCmd "github.com/afadesigns/rtx/pkg/cmd/version"
)

func NewCmdRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rtx <command>",
		Short:         "rtx: dependency supply-chain trust evaluator",
		Long:          "rtx evaluates the supply-chain trust of a project's declared dependencies: advisory exposure, maintainer/release signals, and known-compromised packages.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.AddCommand(
		scanCmd.NewCmd(),
		preupgradeCmd.NewCmd(),
		reportCmd.NewCmdReport(),
		listmanagersCmd.NewCmd(),
		diagnosticsCmd.NewCmd(),
		versionCmd.NewCmd(),
	)

	return cmd
}
