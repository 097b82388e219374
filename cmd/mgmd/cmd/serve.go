package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/eoscore/metacore/internal/config"
	"github.com/eoscore/metacore/internal/mgmd"
	"github.com/eoscore/metacore/pkg/elog"
	"github.com/eoscore/metacore/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the mgmd daemon until a quit signal is received",
	RunE: func(_ *cobra.Command, _ []string) error {
		log := elog.New(os.Stderr)

		cfg, err := config.LoadMgmdConfig(configPath)
		if err != nil {
			log.Fatalf("mgmd: loading config %s: %v", configPath, err)
		}

		d, err := mgmd.New(cfg, log)
		if err != nil {
			log.Fatalf("mgmd: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			sig := utils.WaitForQuit()
			log.Infof("mgmd: received %v, shutting down", sig)
			cancel()
		}()

		return d.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
