package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/codeindex/internal/vectorstore/sqlite"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "codeindex\n")
		fmt.Fprintf(out, "Version: %s\n", version)
		fmt.Fprintf(out, "Build Time: %s\n", buildTime)
		fmt.Fprintf(out, "Build Mode: %s\n", sqlite.BuildMode)
		fmt.Fprintf(out, "SQLite Driver: %s\n", sqlite.DriverName)
		fmt.Fprintf(out, "Vector Extension: %v\n", sqlite.VectorExtensionAvailable)
	},
}
