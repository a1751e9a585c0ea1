package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the scheduler application
var rootCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Conversational meeting scheduler",
	Long: `scheduler books, checks and cancels meetings on a per-user calendar
through a natural-language chat endpoint backed by an LLM.

It can run as:
  - An HTTP API server (default)
  - An MCP (Model Context Protocol) server over stdio for one user`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "scheduler version %s\n" .Version}}`)

	// If no subcommand is provided, run the HTTP server by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newVersionCmd())
}
