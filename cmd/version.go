package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/clsizeof/internal/compute"
)

var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "clsizeof version %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "backends: %v\n", compute.SupportedBackends())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
