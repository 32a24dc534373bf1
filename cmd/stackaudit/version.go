package main

import (
	"github.com/spf13/cobra"

	"stackaudit/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		writeOutput(cmd, version.Full())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
