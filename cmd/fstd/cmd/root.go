// Package cmd implements fstd's cobra command tree: serve starts the
// daemon.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "fstd",
	Short:   "metacore storage-node daemon",
	Long:    "fstd runs the FST-side file-metadata store, the disk/MGM resync engine, and the fsnotify watcher that feeds it between sweeps.",
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
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/metacore/fstd.cfg", "path to fstd config file")
}
