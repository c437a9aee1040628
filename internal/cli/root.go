// Package cli defines the command-line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "arni-worker",
	Short: "Key-value backed worker with usage analytics",
	Long: `arni-worker is a request-routed facade over a key-value store:
CRUD endpoints for webhooks, tasks, notes, configuration and logs, an
outbound HTTP proxy, and usage/quota accounting with an HTML dashboard.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Bare invocation behaves like serve.
		serveCmd.Run(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or HuJSON)")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
