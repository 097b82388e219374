// Package cmd implements mgmd's cobra command tree: serve starts the
// daemon, fsck drives the FSCK controller on a running daemon over its
// admin HTTP surface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "mgmd",
	Short:   "metacore metadata-manager daemon",
	Long:    "mgmd runs the MGM-side metadata/storage reconciliation core: the fs-view façade, FSCK collector/repair, the group rebalancer and drainer, and the balance transfer scheduler.",
	Version: "0.1.0-dev",
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/metacore/mgmd.cfg", "path to mgmd config file")
}
