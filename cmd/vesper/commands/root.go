package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

var (
	// userFlag overrides the default user from vesper.yml
	userFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vesper",
	Short: "Vesper - offline-first day planner",
	Long: `Vesper is a day planner whose data lives in a remote document store
and is mirrored into a local query cache, so every command stays responsive:
writes apply optimistically and reconcile with the store in the background.

Vesper keeps a backlog of drafts and scheduling candidates, places activities
on calendar days, and can turn free-form notes into structured tasks with AI
assistance.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "user id (overrides the config default)")
}
