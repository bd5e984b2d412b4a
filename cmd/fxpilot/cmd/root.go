package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxpilot/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "fxpilot",
	Short: "Automated FX trading loop with advisory signals and risk gating",
	Long: `fxpilot runs an automated FX trading loop.

Each cycle it refreshes the account, asks an advisory model for a
direction per symbol, gates the idea through daily drawdown and capacity
limits, sizes it from the stop distance and places a bracketed market
order. An HTTP surface lets operators start, stop and retune the bot.

Secrets are read from the environment (or a .env file):
  GEMINI_API_KEY, GEMINI_MODEL, OANDA_TOKEN, OANDA_ACCOUNT_ID, BOT_CONFIG_PATH`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadDotEnv()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "f", "", "config file (default $BOT_CONFIG_PATH or ./config.yaml)")
}
