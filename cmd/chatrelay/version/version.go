// Package versioncmder provides the version command.
package versioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the chatrelay version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
				cliui.NameStyle.Render("chatrelay "+utils.Version),
				cliui.DimStyle.Render(utils.Sha),
				cliui.DimStyle.Render(utils.Buildtime),
			)
		},
	}
}
