// Package cli implements the maintsched command line.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldops/maintsched/internal/config"
)

var (
	configPath string
	cfg        *config.Config

	stdout io.Writer = os.Stdout
	stdin  io.Reader = os.Stdin
)

var rootCmd = &cobra.Command{
	Use:   "maintsched",
	Short: "Recurring maintenance schedules and their lifecycle",
	Long: `maintsched expands recurring maintenance schedules into occurrences,
moves them through their lifecycle and manages recurrence families.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./maintsched.yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd, createCmd, transitionCmd, familyCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func cmdContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
