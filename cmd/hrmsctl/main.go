package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/akjtjhklf/fnb-hrms-client/internal/commands"
)

var version = "dev" // Will be set during build

func main() {
	rootCmd := &cobra.Command{
		Use:   "hrmsctl",
		Short: "Talk to the HRMS backend through the resilient API client",
		Long: `hrmsctl signs in to the HRMS backend and issues requests through the same client
the applications use: credentials are attached, expired sessions are refreshed once
for all concurrent requests and transient failures are retried.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	commands.Register(rootCmd)
	rootCmd.AddCommand(commands.NewVersionCommand(version))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
