package cmd

import (
	"fmt"
	"strings"

	"agentflow/internal/workflow"
	"github.com/spf13/cobra"
)

var chainCmd = &cobra.Command{
	Use:   "chain <topic>",
	Short: "Prompt chaining: outline, draft, polish",
	Long: `Run a sequential content pipeline where each step feeds the next:
an outline is drafted from the topic, expanded into prose, then polished.

Examples:
  agentflow chain "remote work for small teams"
  agentflow chain "the history of coffee" -p anthropic`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChain,
}

func init() {
	rootCmd.AddCommand(chainCmd)
}

const (
	outlinePrompt = `You are an editorial planner. Produce a short outline
(3-5 bullet points) for an article on the topic the user provides.
Respond with the outline only.`

	draftPrompt = `You are a writer. Expand the outline you are given into a
short article (3-4 paragraphs). Respond with the article only.`

	polishPrompt = `You are a copy editor. Tighten the draft you are given:
fix grammar, remove filler, keep the author's voice. Respond with the
edited article only.`
)

func runChain(cmd *cobra.Command, args []string) error {
	provider, cfg, err := setupProvider()
	if err != nil {
		return err
	}
	topic := strings.Join(args, " ")

	flow := workflow.New("content-pipeline").
		Observe(flowObserver()).
		Step("outline", promptStep(provider, cfg, outlinePrompt)).
		Step("draft", promptStep(provider, cfg, draftPrompt)).
		Step("polish", promptStep(provider, cfg, polishPrompt))

	out, err := flow.Run(cmd.Context(), topic)
	if err != nil {
		return err
	}
	article, ok := out.(string)
	if !ok {
		return fmt.Errorf("unexpected pipeline output type %T", out)
	}
	printResult(article)
	return nil
}
