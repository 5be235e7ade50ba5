// Package statuscmder provides the status command for showing which
// server, conversation and model `chatrelay chat` will use next.
package statuscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/credentials"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
)

const statusLongDesc string = `Show the current chatrelay client state.

Reads the .chatrelay/ directory (local or ~/.chatrelay/) to display the
configured server, whether a token is stored for it, and the conversation
the next chat session resumes.

Use --reset to forget the saved conversation so the next chat starts fresh.

Examples:
  chatrelay status
  chatrelay status --reset`

const statusShortDesc string = "Show current chat state"

func NewStatusCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			if reset {
				return runReset(cmd, configDir)
			}
			return runStatus(cmd, configDir)
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Forget the saved conversation")

	return cmd
}

func runStatus(cmd *cobra.Command, configDir string) error {
	out := cmd.OutOrStdout()

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	target := cfg.Client.APITarget

	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	token, err := creds.GetToken(target)
	if err != nil {
		return err
	}

	tokenStatus := cliui.SuccessMark + " stored"
	if token == "" {
		tokenStatus = cliui.FailMark + " missing " + cliui.DimStyle.Render("(run 'chatrelay auth')")
	}

	fmt.Fprintf(out, "\n  %s  %s\n", cliui.KeyStyle.Render("Server:      "), cliui.NameStyle.Render(target))
	fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Token:       "), tokenStatus)

	state, err := dotdir.NewManager().LoadChatState(configDir)
	if err != nil {
		return fmt.Errorf("loading chat state: %w", err)
	}

	if state == nil {
		fmt.Fprintf(out, "\n  %s No saved conversation. Next chat will start a new one.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Conversation:"), cliui.ValueStyle.Render(state.ConversationID))
	fmt.Fprintf(out, "  %s  %s\n\n", cliui.KeyStyle.Render("Model:       "), cliui.ValueStyle.Render(state.ModelID))
	return nil
}

func runReset(cmd *cobra.Command, configDir string) error {
	if err := dotdir.NewManager().ClearChatState(configDir); err != nil {
		return fmt.Errorf("clearing chat state: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  %s Cleared saved conversation. Next chat will start a new one.\n", cliui.SuccessMark)
	return nil
}
