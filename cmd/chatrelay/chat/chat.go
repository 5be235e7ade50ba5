// Package chatcmder provides the chat command for an interactive session
// against a running chatrelay server.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/apiclient"
	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	apiTarget      string
	configDir      string
	model          string
	conversationID string
	title          string
	fresh          bool
	markdown       bool
	debug          bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive chat session with a chatrelay server.

Each message is sent to /api/chat and the reply streams back token by token.
The server stores both sides of the conversation.

The conversation and model are remembered in chat.json in the .chatrelay/
directory, so running "chatrelay chat" again resumes where you left off.
Use --new to start a fresh conversation.

Model IDs come from "chatrelay models list". An access token for the server
must be stored first with "chatrelay auth".

Examples:
  chatrelay chat --model 1b7d5f0e-2f4c-4c1e-8f4b-0e9d3c2a1b00
  chatrelay chat --new --title "Release notes"
  chatrelay chat --conversation 7f0c1c7e-4a53-4c55-9c55-6a0a1f0c2d11
  chatrelay chat --api-target https://relay.example.com`

const chatShortDesc string = "Interactive chat through a chatrelay server"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model ID to chat with")
	cmd.Flags().StringVarP(&cmder.conversationID, "conversation", "c", "", "Conversation ID to resume")
	cmd.Flags().StringVarP(&cmder.title, "title", "t", "", "Title for a new conversation")
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Start a new conversation instead of resuming")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render each reply as markdown once it completes")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(c.errOut),
	)

	client, err := apiclient.NewFromCredentials(c.configDir, c.apiTarget, apiclient.WithLogger(c.logger))
	if err != nil {
		return err
	}

	ddm := dotdir.NewManager()
	state, err := ddm.LoadChatState(c.configDir)
	if err != nil {
		return fmt.Errorf("loading chat state: %w", err)
	}

	session, resumed, err := c.resolveSession(ctx, client, state)
	if err != nil {
		return err
	}
	if err := ddm.SaveChatState(session, c.configDir); err != nil {
		return fmt.Errorf("saving chat state: %w", err)
	}

	fmt.Fprintln(c.out)
	if resumed {
		fmt.Fprintf(c.out, "  %s Resuming %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(utils.Truncate(session.ConversationID, 8)),
		)
	} else {
		fmt.Fprintf(c.out, "  %s New conversation %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(utils.Truncate(session.ConversationID, 8)),
		)
	}
	fmt.Fprintf(c.out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.ValueStyle.Render(session.ModelID),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		if err := c.send(ctx, client, session, input); err != nil {
			fmt.Fprintf(c.out, "\n  %s %v\n\n", cliui.FailMark, err)
			continue
		}
		fmt.Fprint(c.out, "\n\n")
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// resolveSession picks the conversation and model for this run: explicit
// flags first, then the saved chat state, creating a conversation when
// there is nothing to resume.
func (c *chatCommander) resolveSession(ctx context.Context, client *apiclient.Client, state *dotdir.ChatState) (*dotdir.ChatState, bool, error) {
	session := &dotdir.ChatState{ModelID: c.model}

	// --new skips the saved conversation but keeps its model.
	convID := c.conversationID
	if convID == "" && state != nil {
		if !c.fresh {
			convID = state.ConversationID
		}
		if session.ModelID == "" {
			session.ModelID = state.ModelID
		}
	}

	if convID != "" {
		conv, err := client.GetConversation(ctx, convID)
		switch {
		case err == nil:
			if session.ModelID == "" && conv.ModelID != nil {
				session.ModelID = *conv.ModelID
			}
			if session.ModelID == "" {
				return nil, false, errors.New("no model for this conversation: pass --model (see 'chatrelay models list')")
			}
			session.ConversationID = conv.ID
			return session, true, nil

		case apiclient.IsStatus(err, http.StatusNotFound) && c.conversationID == "":
			c.logger.Debug("saved conversation is gone, starting a new one", "conversation_id", convID)

		default:
			return nil, false, fmt.Errorf("loading conversation: %w", err)
		}
	}

	if session.ModelID == "" {
		return nil, false, errors.New("--model is required for a new conversation (see 'chatrelay models list')")
	}

	conv, err := client.CreateConversation(ctx, c.title, session.ModelID)
	if err != nil {
		return nil, false, fmt.Errorf("creating conversation: %w", err)
	}
	session.ConversationID = conv.ID
	return session, false, nil
}

// send streams one reply to the output. With --markdown the reply is
// buffered and rendered once complete.
func (c *chatCommander) send(ctx context.Context, client *apiclient.Client, session *dotdir.ChatState, input string) error {
	fmt.Fprint(c.out, assistantPrompt)

	var reply strings.Builder
	onContent := func(s string) {
		reply.WriteString(s)
		if !c.markdown {
			fmt.Fprint(c.out, s)
		}
	}

	frame, err := client.Chat(ctx, session.ConversationID, session.ModelID, input, onContent)
	if err != nil {
		return err
	}

	if c.markdown {
		rendered, err := cliui.RenderMarkdown(reply.String())
		if err != nil {
			c.logger.Debug("markdown render failed", "error", err)
		}
		fmt.Fprint(c.out, "\n"+rendered)
	}

	if frame.TokensUsed != nil {
		c.logger.Debug("reply complete",
			"message_id", frame.MessageID,
			"tokens_used", *frame.TokensUsed,
		)
	}
	return nil
}
