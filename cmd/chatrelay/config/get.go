package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
)

const getLongDesc string = `Get a configuration value.

Reads the value for the given key from the config.toml file stored in the
.chatrelay/ directory, falling back to the built-in default. Secret values
are printed only with --reveal.

Examples:
  chatrelay config get storage.driver
  chatrelay config get auth.jwt_secret --reveal`

const getShortDesc string = "Get a configuration value"

func newGetCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:               "get <key>",
		Short:             getShortDesc,
		Long:              getLongDesc,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := checkKey(key); err != nil {
				return err
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			printTarget(cmd, cfger)

			value, err := cfger.GetConfigValue(key)
			if err != nil {
				return err
			}
			if !reveal {
				value = display(key, value)
			}

			if value == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s\n\n", cliui.KeyStyle.Render(key), cliui.DimStyle.Render("<not set>"))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s  %s\n\n", cliui.KeyStyle.Render(key), cliui.ValueStyle.Render(value))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print secret values in clear text")

	return cmd
}
