// Package cmd implements the baudsniffer command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	appName    = "BaudSniffer"
	appVersion = "1.0.0"
)

var (
	configPath string
	debug      bool

	// v collects flag bindings; config.LoadViper layers file and env under it
	v = viper.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "baudsniffer",
	Short: "Discover the serial settings of an unknown device",
	Long: `BaudSniffer finds the communication parameters of an unknown serial
device (baud rate, byte size, parity and stop bits) by opening the port with
every combination in turn, reading a short sample and keeping the
combinations whose output is legible text.

The device must be sending while the sweep runs. Each probe waits up to the
probe timeout, so a full default sweep takes about half an hour.`,
	Version:       appVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (JSON, YAML or TOML)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
