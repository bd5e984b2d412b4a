package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxpilot/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage bot configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  fxpilot config init -o config.yaml
  fxpilot config validate -f config.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check that a configuration file loads and passes validation, with
secrets taken from the environment.`,
	RunE: runConfigValidate,
}

var configInitOutput string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", config.DefaultPath, "output config file path")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintf(out, "\nSet %s, edit the file and run with:\n", config.EnvGeminiKey)
	fmt.Fprintf(out, "  fxpilot serve -f %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := config.ResolvePath(cfgFile)
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", path)
	fmt.Fprintf(out, "  Gateway: %s (%s)\n", cfg.Gateway.Kind, cfg.Gateway.Environment)
	fmt.Fprintf(out, "  Symbols: %v on %v\n", cfg.General.Symbols, cfg.General.Timeframes)
	fmt.Fprintf(out, "  Risk: %.2f%% per trade, %d slots, %.1f%% daily drawdown\n",
		cfg.Risk.RiskPerTrade*100, cfg.Risk.MaxConcurrentTrades, cfg.Risk.MaxDailyDrawdown*100)
	fmt.Fprintf(out, "  Advisor: %s\n", cfg.Advisor.Model)
	return nil
}
