package cmd

import (
	"fmt"

	"agentflow/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE:  runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	path, err := config.GetConfigPath()
	if err != nil {
		return err
	}

	fmt.Printf("config file:  %s", path)
	if !config.Exists() {
		fmt.Print(" (not created; run `agentflow config init`)")
	}
	fmt.Println()
	fmt.Printf("provider:     %s\n", cfg.Provider)
	fmt.Printf("model:        %s\n", providerModel(cfg))
	fmt.Printf("max turns:    %d\n", cfg.Defaults.MaxTurns)
	fmt.Printf("progress:     %t\n", cfg.Progress.Enabled)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if config.Exists() {
		path, _ := config.GetConfigPath()
		return fmt.Errorf("config already exists at %s", path)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return err
	}
	path, _ := config.GetConfigPath()
	fmt.Printf("wrote %s\n", path)
	return nil
}

func providerModel(cfg *config.Config) string {
	switch cfg.Provider {
	case "anthropic":
		return cfg.Anthropic.Model
	case "openai":
		return cfg.OpenAI.Model
	case "ollama":
		return cfg.Ollama.Model
	case "lmstudio":
		return cfg.LMStudio.Model
	case "openai-compat":
		return cfg.OpenAICompat.Model
	case "mock":
		return cfg.Mock.Model
	}
	return ""
}
