// Package chatrelaycmder is the root of the chatrelay command tree.
package chatrelaycmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/auth"
	chatcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/chat"
	configcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/config"
	initcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/init"
	modelscmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/models"
	servecmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/serve"
	statuscmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/status"
	versioncmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/version"
)

const chatrelayLongDesc string = `chatrelay streams Ollama generations to browsers over SSE and keeps
the conversation history.

Run the server with:
  chatrelay serve

Talk to a running server with:
  chatrelay auth           Store an access token
  chatrelay chat           Chat from the terminal
  chatrelay models list    List available models
  chatrelay status         Show the saved conversation`

const chatrelayShortDesc string = "chatrelay - Ollama chat relay"

func NewChatrelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chatrelay",
		Short:         chatrelayShortDesc,
		Long:          chatrelayLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .chatrelay/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(modelscmder.NewModelsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
