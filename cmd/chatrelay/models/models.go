// Package modelscmder provides the models command for inspecting the model
// catalog of a chatrelay server.
package modelscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/config"
)

const modelsLongDesc string = `Inspect the models a chatrelay server offers.

Use subcommands to list models or check an Ollama endpoint:
  chatrelay models list                  List enabled models
  chatrelay models health <endpoint-id>  Check an endpoint (admin only)`

const modelsShortDesc string = "Inspect the server's model catalog"

// target is the shared --api-target value of the models subcommands.
type target struct {
	apiTarget string
	configDir string
}

func NewModelsCmd() *cobra.Command {
	t := &target{}

	cmd := &cobra.Command{
		Use:   "models",
		Short: modelsShortDesc,
		Long:  modelsLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			t.configDir, _ = cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(t.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				t.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
	}

	def := config.Flags[config.FlagAPITarget]
	cmd.PersistentFlags().StringVarP(&t.apiTarget, def.Name, def.Shorthand, config.NewDefaultConfig().Client.APITarget, def.Description)

	cmd.AddCommand(newListCmd(t))
	cmd.AddCommand(newHealthCmd(t))

	return cmd
}
