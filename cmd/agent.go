package cmd

import (
	"strings"

	"agentflow/internal/llm"
	"agentflow/internal/tools"
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent <question>",
	Short: "Tool use: a weather agent with an agentic tool loop",
	Long: `Answer weather questions by letting the model call a forecast
lookup tool, possibly several times, before composing its answer.

Examples:
  agentflow agent "What's the weather in Tokyo?"
  agentflow agent "Should I pack an umbrella for London or Paris?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

const agentPrompt = `You are a travel weather assistant. Use the weather
tool to look up conditions for every city the user mentions before
answering. Keep the final answer short and practical.`

func runAgent(cmd *cobra.Command, args []string) error {
	provider, cfg, err := setupProvider()
	if err != nil {
		return err
	}
	question := strings.Join(args, " ")

	registry := llm.NewToolRegistry()
	registry.Register(tools.NewWeatherTool())
	engine := llm.NewEngine(provider, registry)

	answer, err := engineText(cmd.Context(), engine, cfg, agentPrompt, question)
	if err != nil {
		return err
	}
	printResult(answer)
	return nil
}
