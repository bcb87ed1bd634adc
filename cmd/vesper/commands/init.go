package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dyluth/vesper/internal/config"
	"github.com/dyluth/vesper/internal/printer"
)

var (
	initWorkspace string
	initUser      string
	initForce     bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter vesper.yml in the current directory",
	Long: `Create a starter vesper.yml in the current directory.

The generated file points at a local Redis store and sets the default
workspace and user. Edit it to match your deployment before running other
commands.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initWorkspace, "workspace", "personal", "workspace namespace")
	initCmd.Flags().StringVar(&initUser, "init-user", "", "default user id written to the config")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing vesper.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(config.DefaultFileName); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", config.DefaultFileName)
	}

	user := initUser
	if user == "" {
		user = userFlag
	}

	if err := os.WriteFile(config.DefaultFileName, config.Starter(initWorkspace, user), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.DefaultFileName, err)
	}

	printer.Success("Wrote %s (workspace %q)\n", config.DefaultFileName, initWorkspace)
	if user == "" {
		printer.Info("Set 'user' in the config or pass --user on each command.\n")
	}
	return nil
}
