package cmd

import (
	"github.com/michaelpento.lv/arbbot/utils"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "arbbot",
	Short: "A cross-venue AMM arbitrage bot",
	Long: `A bot that watches a fixed token pair across constant-product DEXes,
detects price divergence, simulates flash-loan arbitrage profitability, and
submits profitable trades privately through a block-builder relay.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	utils.InitLogger(debug)
}
