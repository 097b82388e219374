package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/eoscore/metacore/internal/config"
	"github.com/eoscore/metacore/internal/fstd"
	"github.com/eoscore/metacore/pkg/elog"
	"github.com/eoscore/metacore/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the fstd daemon until a quit signal is received",
	RunE: func(_ *cobra.Command, _ []string) error {
		log := elog.New(os.Stderr)

		cfg, err := config.LoadFstdConfig(configPath)
		if err != nil {
			log.Fatalf("fstd: loading config %s: %v", configPath, err)
		}

		d, err := fstd.New(cfg, log)
		if err != nil {
			log.Fatalf("fstd: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			sig := utils.WaitForQuit()
			log.Infof("fstd: received %v, shutting down", sig)
			cancel()
		}()

		return d.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
