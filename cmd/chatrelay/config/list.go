package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key with its value from config.toml or the
built-in default. Secret values are masked.

Examples:
  chatrelay config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Using config file: %s\n\n", cfger.GetTarget())

			keys := config.ValidConfigKeys()

			// Find the longest key name for alignment.
			maxLen := 0
			for _, k := range keys {
				maxLen = max(maxLen, len(k))
			}

			for _, key := range keys {
				value, err := cfger.GetConfigValue(key)
				if err != nil {
					return err
				}

				if value == "" {
					fmt.Fprintf(out, "%-*s = <not set>\n", maxLen, key)
				} else {
					fmt.Fprintf(out, "%-*s = %q\n", maxLen, key, display(key, value))
				}
			}

			return nil
		},
	}

	return cmd
}
