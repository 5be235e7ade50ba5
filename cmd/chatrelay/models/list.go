package modelscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/apiclient"
	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const listLongDesc string = `List the enabled models of a chatrelay server.

The ID column is what "chatrelay chat --model" expects.

Examples:
  chatrelay models list
  chatrelay models list --quiet`

const listShortDesc string = "List enabled models"

func newListCmd(t *target) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := apiclient.NewFromCredentials(t.configDir, t.apiTarget)
			if err != nil {
				return err
			}

			models, err := client.ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing models: %w", err)
			}

			out := cmd.OutOrStdout()
			if quiet {
				for _, m := range models {
					fmt.Fprintln(out, m.ID)
				}
				return nil
			}

			if len(models) == 0 {
				fmt.Fprintf(out, "\n  %s No models available on %s\n\n", cliui.DimStyle.Render("●"), t.apiTarget)
				return nil
			}

			fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Models"))
			for _, m := range models {
				printModel(cmd, m)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only model IDs, one per line")

	return cmd
}

func printModel(cmd *cobra.Command, m *storage.ModelWithEndpoint) {
	fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s  %s\n    %s %s %s\n",
		healthMark(m.Endpoint.HealthStatus),
		cliui.NameStyle.Render(m.Name),
		cliui.DimStyle.Render(m.ModelID),
		cliui.KeyStyle.Render("id:"),
		cliui.ValueStyle.Render(m.ID),
		cliui.DimStyle.Render("("+m.Endpoint.Name+")"),
	)
}

func healthMark(status storage.HealthStatus) string {
	switch status {
	case storage.HealthHealthy:
		return cliui.SuccessMark
	case storage.HealthUnhealthy:
		return cliui.FailMark
	default:
		return cliui.WarnStyle.Render("?")
	}
}
