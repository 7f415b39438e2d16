package cmd

import (
	"context"
	"fmt"
	"strings"

	"agentflow/internal/workflow"
	"github.com/spf13/cobra"
)

var parallelCmd = &cobra.Command{
	Use:   "parallel <ticker>",
	Short: "Parallelization: fan out analyses, then synthesize",
	Long: `Produce an investment brief for a stock ticker by running three
independent analyses concurrently (fundamentals, market sentiment, risk)
and merging them with a synthesis step.

Examples:
  agentflow parallel NVDA
  agentflow parallel AAPL -p openai`,
	Args: cobra.ExactArgs(1),
	RunE: runParallel,
}

func init() {
	rootCmd.AddCommand(parallelCmd)
}

const (
	fundamentalsPrompt = `You are an equity analyst. Give a brief
fundamentals overview (business model, revenue drivers, competitive
position) for the ticker the user provides. 2-3 short paragraphs.`

	sentimentPrompt = `You are a market analyst. Summarize recent market
sentiment and notable narratives around the ticker the user provides.
2-3 short paragraphs.`

	riskPrompt = `You are a risk analyst. List the main risks (competitive,
regulatory, execution, valuation) for the ticker the user provides as
short bullet points.`

	synthesisPrompt = `You are a portfolio strategist. You are given three
analyst sections separated by headers. Merge them into a single coherent
investment brief with a one-paragraph conclusion. Respond in markdown.`
)

func runParallel(cmd *cobra.Command, args []string) error {
	provider, cfg, err := setupProvider()
	if err != nil {
		return err
	}
	ticker := strings.ToUpper(args[0])

	flow := workflow.New("stock-brief").
		Observe(flowObserver()).
		Parallel("analyses",
			promptStep(provider, cfg, fundamentalsPrompt),
			promptStep(provider, cfg, sentimentPrompt),
			promptStep(provider, cfg, riskPrompt),
		).
		Step("synthesize", func(ctx context.Context, input any) (any, error) {
			sections, ok := input.([]any)
			if !ok {
				return nil, fmt.Errorf("expected []any input, got %T", input)
			}
			headers := []string{"## Fundamentals", "## Sentiment", "## Risks"}
			var combined strings.Builder
			for i, section := range sections {
				fmt.Fprintf(&combined, "%s\n\n%v\n\n", headers[i], section)
			}
			return generateText(ctx, provider, cfg, synthesisPrompt, combined.String())
		})

	out, err := flow.Run(cmd.Context(), ticker)
	if err != nil {
		return err
	}
	brief, ok := out.(string)
	if !ok {
		return fmt.Errorf("unexpected brief output type %T", out)
	}
	printResult(brief)
	return nil
}
