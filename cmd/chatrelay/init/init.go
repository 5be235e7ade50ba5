// Package initcmder provides the init command for initializing a local
// .chatrelay directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
)

const initLongDesc string = `Initialize a new .chatrelay/ directory in the current working directory.

Creates a local .chatrelay/ directory, seeded with a config.toml holding the
default settings, that takes precedence over ~/.chatrelay/ for configuration,
credentials and chat state.

This is useful for keeping a separate server configuration per project.

Examples:
  chatrelay init
  chatrelay init --config-dir ./deploy/chatrelay`

const initShortDesc string = "Initialize a local .chatrelay/ directory"

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runInit(cmd, configDir)
		},
	}

	return cmd
}

func runInit(cmd *cobra.Command, configDir string) error {
	dir := configDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dotdir.DirName)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating .chatrelay directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}

	_, err = os.Stat(cfger.GetTarget())
	switch {
	case err == nil:
		fmt.Fprintf(cmd.OutOrStdout(), "Already initialized: %s\n", dir)
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("checking config: %w", err)
	}

	if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized .chatrelay directory: %s\n", dir)
	return nil
}
