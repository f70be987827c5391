// Package cli wires the issuewatch commands: the long-running daemon plus
// offline admin commands that operate on the task store directly.
package cli

import (
	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "issuewatch",
	Short: "Monitor remote issue-tracker items for changes",
	Long: `issuewatch polls remote issue-tracker items, diffs each fetch against the
last known snapshot, and pushes grouped notifications when fields change.

The daemon is started with "issuewatch run". Tasks can be managed while the
daemon is stopped using "add", "remove", "list" and "show", which operate on
the task store directly.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.yaml", "path to config file (yaml or json)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
