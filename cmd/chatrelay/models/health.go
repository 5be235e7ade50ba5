package modelscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/apiclient"
	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const healthLongDesc string = `Ask the server to check an Ollama endpoint and record the result.

Requires an admin token.

Examples:
  chatrelay models health 4d3c2b1a-0f9e-4d8c-b7a6-5f4e3d2c1b0a`

const healthShortDesc string = "Check an endpoint's health"

func newHealthCmd(t *target) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health <endpoint-id>",
		Short: healthShortDesc,
		Long:  healthLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiclient.NewFromCredentials(t.configDir, t.apiTarget)
			if err != nil {
				return err
			}

			var health *storage.HealthStatus
			err = cliui.Step(cmd.OutOrStdout(), "Checking endpoint "+args[0], func() error {
				resp, err := client.CheckEndpointHealth(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				health = &resp.Status
				return nil
			})
			if err != nil {
				return fmt.Errorf("checking endpoint: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n\n",
				cliui.KeyStyle.Render("Status:"),
				healthMark(*health)+" "+cliui.ValueStyle.Render(string(*health)),
			)
			if *health != storage.HealthHealthy {
				return fmt.Errorf("endpoint %s is %s", args[0], *health)
			}
			return nil
		},
	}

	return cmd
}
