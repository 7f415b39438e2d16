package cmd

import (
	"fmt"
	"os"

	"agentflow/internal/config"
	"agentflow/internal/llm"
	"agentflow/internal/progress"
	"agentflow/internal/ui"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agentflow",
	Short: "Agentic workflow pattern demos",
	Long: `agentflow demonstrates common agentic LLM workflow patterns,
each as its own subcommand.

Examples:
  agentflow chain "remote work for small teams"
  agentflow route "I was charged twice this month"
  agentflow parallel NVDA
  agentflow reflect "why Go is good for CLI tools"
  agentflow agent "What's the weather in Tokyo and Paris?"

  agentflow models                      # list provider models
  agentflow chain -p mock "topic"       # run offline against the mock provider`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

var (
	flagProvider      string
	flagModel         string
	flagQuiet         bool
	flagShowReasoning bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagProvider, "provider", "p", "", "Override provider, optionally with model (e.g., openai:gpt-5.2)")
	rootCmd.PersistentFlags().StringVarP(&flagModel, "model", "m", "", "Override model for the selected provider")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress model-call progress lines")
	rootCmd.PersistentFlags().BoolVar(&flagShowReasoning, "show-reasoning", false, "Log reasoning previews as they stream")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupProvider loads config, applies flag overrides, and returns the
// provider wrapped with progress monitoring unless --quiet is set.
// Falls back to the mock provider when the selected provider needs an
// API key that is not configured.
func setupProvider() (llm.Provider, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if flagProvider != "" {
		name, model, err := llm.ParseProviderModel(flagProvider)
		if err != nil {
			return nil, nil, err
		}
		cfg.ApplyOverrides(name, model)
	}
	if flagModel != "" {
		cfg.ApplyOverrides("", flagModel)
	}

	provider, err := llm.NewProvider(cfg)
	if err != nil {
		if flagProvider != "" {
			return nil, nil, err
		}
		// No credentials and no explicit choice: run the demo offline.
		styles := ui.DefaultStyles()
		fmt.Fprintln(os.Stderr, styles.Muted.Render(fmt.Sprintf("%v; using mock provider", err)))
		cfg.ApplyOverrides("mock", "")
		provider, err = llm.NewProvider(cfg)
		if err != nil {
			return nil, nil, err
		}
	}

	if progressEnabled(cfg) {
		provider = progress.Wrap(provider,
			progress.WithLabel(provider.Name()),
			progress.WithReasoning(showReasoning(cfg)),
		)
	}
	return provider, cfg, nil
}

func progressEnabled(cfg *config.Config) bool {
	return cfg.Progress.Enabled && !flagQuiet
}

func showReasoning(cfg *config.Config) bool {
	return flagShowReasoning || cfg.Progress.ShowReasoning
}

// printResult renders markdown output when stdout is a terminal,
// otherwise prints it raw for piping.
func printResult(content string) {
	if ui.IsTerminal() {
		fmt.Print(ui.RenderMarkdown(content, ui.TerminalWidth()))
		return
	}
	fmt.Println(content)
}
