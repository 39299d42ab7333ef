package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"projecthub/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "projecthub",
	Short: "Project Hub - local project launcher",
	Long:  `Project Hub downloads project archives from a remote store, installs their dependencies, and launches local previews.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", config.DefaultAPIAddr, "Daemon API address")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(tuiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
