// Package main provides the entry point for the faultline CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/faultline/cmd/faultline/commands"
)

func main() {
	opts := &commands.GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "faultline",
		Short: "Mine method-level defect datasets from git history and an issue tracker",
		Long: `faultline links tracker defects to their fix commits, labels every method of
the analysed releases as buggy or clean, and writes one row of size, complexity
and change features per method and release.

Commands:
  mine      Build the dataset for a project
  releases  List tracker releases and the tags they resolve to
  version   Show build information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.Bind(rootCmd)

	rootCmd.AddCommand(commands.NewMineCommand(opts))
	rootCmd.AddCommand(commands.NewReleasesCommand(opts))
	rootCmd.AddCommand(commands.NewVersionCommand())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
