package cmd

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var adminAddr string

var fsckCmd = &cobra.Command{
	Use:   "fsck",
	Short: "drive the FSCK controller on a running mgmd",
}

var fsckEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "enable the FSCK collector/repair loops",
	RunE: func(cmd *cobra.Command, _ []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		url := fmt.Sprintf("http://%s/fsck/enable", adminAddr)
		if interval > 0 {
			url += "?interval=" + interval.String()
		}
		return adminPost(url)
	},
}

var fsckDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "disable the FSCK collector/repair loops",
	RunE: func(*cobra.Command, []string) error {
		return adminPost(fmt.Sprintf("http://%s/fsck/disable", adminAddr))
	},
}

var fsckStateCmd = &cobra.Command{
	Use:   "state",
	Short: "print the FSCK controller's current state",
	RunE: func(*cobra.Command, []string) error {
		resp, err := http.Get(fmt.Sprintf("http://%s/fsck/state", adminAddr))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	},
}

func adminPost(url string) error {
	resp, err := http.Post(url, "application/x-www-form-urlencoded", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mgmd: admin request failed: %s: %s", resp.Status, body)
	}
	return nil
}

func init() {
	fsckEnableCmd.Flags().Duration("interval", 0, "collector sleep between cycles (default: server's configured interval)")
	fsckCmd.AddCommand(fsckEnableCmd, fsckDisableCmd, fsckStateCmd)
	fsckCmd.PersistentFlags().StringVar(&adminAddr, "addr", "127.0.0.1:8080", "mgmd's opaque-query/admin listen address")
	rootCmd.AddCommand(fsckCmd)
}
