package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFile string

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "api",
		Short:        "Z Chat backend",
		Long:         `api serves the session-gated chat app. Without a subcommand it runs the HTTP server.`,
		RunE:         runServe,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewHashPasswordCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
