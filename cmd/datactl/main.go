package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-bricks-data/cmd/datactl/internal/commands"
)

var version = "dev" // Will be set during build

func main() {
	env := commands.DefaultEnv()
	rootCmd := &cobra.Command{
		Use:   "datactl",
		Short: "Operate go-bricks-data data sources",
		Long: `Command line companion for go-bricks-data applications.

It reads the same configuration as the application (config.yaml plus DATA_*
environment variables) and talks to the configured data sources directly.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	env.BindFlags(rootCmd)

	rootCmd.AddCommand(
		commands.NewHealthCommand(env),
		commands.NewExecCommand(env),
		commands.NewVersionCommand(version),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
