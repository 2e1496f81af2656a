// Package cmd provides the command-line interface for marvin.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/marvin/internal/config"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "marvin",
	Short: "Marvin follows up on stale issue tracker tickets",
	Long: `Marvin is a CLI tool that looks for tickets nobody has touched for a while
and follows up on them. Each configured action selects tickets by project,
status and last update, comments on them from a template, and optionally moves
them to another status or closes them.

Tickets mentioning the configured no-bot tag, or whose start or due date lies in
the future, are left alone.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Cancelling ctx stops a run between tracker calls and ends daemon mode.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusesCmd)
	rootCmd.AddCommand(validateCmd)
}
