// Package authcmder provides the auth command for storing the access token
// the CLI sends to a chatrelay server.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/chatrelay/pkg/apiclient"
	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/credentials"
)

const authLongDesc string = `Store the access token used to call a chatrelay server.

Tokens are stored per server URL in credentials.toml in the .chatrelay/
directory and sent as a bearer token by "chatrelay chat" and
"chatrelay models". The CHATRELAY_TOKEN environment variable overrides any
stored token.

Examples:
  chatrelay auth                                    Prompt for a token for the default server
  chatrelay auth --api-target https://relay.example.com
  chatrelay auth --verify                           Check the token against the server
  chatrelay auth --list                             List servers with stored tokens
  chatrelay auth --remove https://relay.example.com Remove a stored token
  echo $TOKEN | chatrelay auth                      Pipe the token from stdin`

const authShortDesc string = "Store an access token for a chatrelay server"

type authCommander struct {
	apiTarget string
	configDir string
	list      bool
	remove    string
	verify    bool
}

func NewAuthCmd() *cobra.Command {
	cmder := &authCommander{}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			switch {
			case cmder.list:
				return cmder.runList(cmd)
			case cmder.remove != "":
				return cmder.runRemove(cmd)
			default:
				if !cmd.Flags().Changed("api-target") {
					target, err := configuredTarget(cmder.configDir)
					if err != nil {
						return err
					}
					cmder.apiTarget = target
				}
				return cmder.runAuth(cmd)
			}
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().BoolVar(&cmder.list, "list", false, "List servers with stored tokens")
	cmd.Flags().StringVar(&cmder.remove, "remove", "", "Remove the stored token for a server URL")
	cmd.Flags().BoolVar(&cmder.verify, "verify", false, "Check the token against the server after storing it")

	return cmd
}

func configuredTarget(configDir string) (string, error) {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	return cfg.Client.APITarget, nil
}

func (c *authCommander) runAuth(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	token, err := readToken(cmd.InOrStdin(), out, c.apiTarget)
	if err != nil {
		return err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token cannot be empty")
	}

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	if err := mgr.SetToken(c.apiTarget, token); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Stored token for %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(c.apiTarget),
	)

	if c.verify {
		client := apiclient.New(c.apiTarget, token)
		err := cliui.Step(out, "Verifying token", func() error {
			_, err := client.ListModels(cmd.Context())
			return err
		})
		if err != nil {
			fmt.Fprintf(out, "\n  %s %v\n\n", cliui.WarnStyle.Render("!"), err)
			return fmt.Errorf("token stored but rejected by %s: %w", c.apiTarget, err)
		}
	}

	fmt.Fprintln(out)
	return nil
}

func (c *authCommander) runList(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	servers, err := mgr.ListServers()
	if err != nil {
		return err
	}

	if len(servers) == 0 {
		fmt.Fprintf(out, "\n  %s No stored tokens.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(out, "  Use 'chatrelay auth --api-target <url>' to store one.\n\n")
		return nil
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored tokens"))
	for _, s := range servers {
		fmt.Fprintf(out, "  %s  %s\n", cliui.SuccessMark, cliui.NameStyle.Render(s))
	}
	if os.Getenv(credentials.TokenEnvVar) != "" {
		fmt.Fprintf(out, "\n  %s\n", cliui.WarnStyle.Render(credentials.TokenEnvVar+" is set and overrides these tokens."))
	}
	fmt.Fprintln(out)

	return nil
}

func (c *authCommander) runRemove(cmd *cobra.Command) error {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.RemoveToken(c.remove); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Removed token for %s.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(c.remove))
	return nil
}

// readToken reads a token from in. A terminal gets a hidden prompt;
// anything else (a pipe, a test buffer) is read up to the first newline.
func readToken(in io.Reader, out io.Writer, target string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(out, "Enter access token for %s: ", target)

		tokenBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return string(tokenBytes), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
