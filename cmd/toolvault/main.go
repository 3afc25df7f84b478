/*
Package main is the entry point for the toolvault CLI.

toolvault is the backend for a browser tool collection: it records tool
usage history, resolves per-tool logging preferences, and serves both over
HTTP together with history search and thumbnail generation.

Usage:
  toolvault [command]

Available Commands:
  serve       Run the toolvault HTTP API
  history     Inspect and manage the usage history
  prefs       Inspect and set per-tool logging preferences
  cleanup     Delete history entries not used recently
  version     Show version information
  help        Help about any command

Examples:
  # Run the server
  toolvault serve

  # List recorded history for one tool
  toolvault history list --route /t/case-converter

  # Silence logging for a sensitive tool
  toolvault prefs set /t/wallet-generator off
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/toolvault/toolvault/internal/cli"
	"github.com/toolvault/toolvault/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "toolvault",
		Short: "Usage history and preference backend for browser tools",
		Long: `toolvault records what the browser tools were run with and what they
produced, deduplicated per tool and input, with per-tool logging
preferences that decide whether results are stored, redacted, or dropped.

The serve command exposes everything over HTTP; the other commands operate
on the same settings file and history database directly.`,
		Version: version.String(),
	}

	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewHistoryCmd())
	rootCmd.AddCommand(cli.NewPrefsCmd())
	rootCmd.AddCommand(cli.NewCleanupCmd())
	rootCmd.AddCommand(cli.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
