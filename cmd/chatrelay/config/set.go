package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file stored in
the .chatrelay/ directory. Values are checked before they are written:
durations must parse ("30s", "15m"), numbers must be integers and enumerated
keys only take their listed values.

Examples:
  chatrelay config set storage.driver postgres
  chatrelay config set server.rate_limit_window 15m
  chatrelay config set events.backend kafka`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "set <key> <value>",
		Short:             setShortDesc,
		Long:              setLongDesc,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if err := checkKey(key); err != nil {
				return err
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			printTarget(cmd, cfger)

			if err := cfger.SetConfigValue(key, value); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Set %s = %s\n\n",
				cliui.SuccessMark,
				cliui.KeyStyle.Render(key),
				cliui.ValueStyle.Render(display(key, value)),
			)
			return nil
		},
	}

	return cmd
}
