package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/genesis/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage bridge configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  genesis config init -o genesis.yaml
  genesis config validate -f genesis.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with default settings. Tokens are
never written; set GENESIS_TOKEN and GENESIS_TERMINAL_TOKEN instead.

Example:
  genesis config init -o genesis.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check if a configuration file is valid and can be loaded.

Example:
  genesis config validate -f genesis.yaml`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "genesis.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  genesis run -f %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	token := "not set"
	if cfg.Backend.Token != "" {
		token = "set"
	}
	fmt.Printf("✓ Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Account: %s %v\n", cfg.Account.ID, cfg.Account.Symbols)
	fmt.Printf("  Backend: %s (token %s)\n", cfg.Backend.URL, token)
	fmt.Printf("  Terminal: %s\n", cfg.Terminal.Kind)
	fmt.Printf("  Risk: %.1f%% default, %.1f%% max\n", cfg.Risk.DefaultRiskPct*100, cfg.Risk.MaxRiskPct*100)
	fmt.Printf("  State: %s\n", cfg.State.Kind)
	fmt.Printf("  Journal: %s\n", cfg.Journal.Type)
	return nil
}
