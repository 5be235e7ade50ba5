// Package configcmder provides the config command for managing persistent
// chatrelay configuration stored in the .chatrelay/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
)

const configLongDesc string = `Manage persistent chatrelay configuration.

Configuration is stored as config.toml in the .chatrelay/ directory and
provides default values for command flags. CLI flags and CHATRELAY_
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen, server.allow_origin, server.rate_limit_max,
  server.rate_limit_window, server.shutdown_timeout,
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  ollama.generate_timeout, ollama.idle_timeout, ollama.cache_ttl,
  cache.backend, cache.redis_addr,
  auth.jwt_secret, auth.audience,
  sse.terminal,
  events.backend, events.brokers, events.topic, events.workers,
  client.api_target

Use subcommands to get, set, or list configuration values:
  chatrelay config set <key> <value>    Set a configuration value
  chatrelay config get <key>            Get a configuration value
  chatrelay config list                 List all configuration values

Examples:
  chatrelay config set storage.driver sqlite
  chatrelay config set storage.sqlite_path ./chatrelay.db
  chatrelay config get sse.terminal
  chatrelay config list`

const configShortDesc string = "Manage persistent chatrelay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

// display masks secret values.
func display(key, value string) string {
	if value != "" && config.IsSecretKey(key) {
		return "********"
	}
	return value
}

func printTarget(cmd *cobra.Command, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
