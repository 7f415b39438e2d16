package cmd

import (
	"context"
	"fmt"
	"strings"

	"agentflow/internal/workflow"
	"github.com/spf13/cobra"
)

var reflectMaxRounds int

var reflectCmd = &cobra.Command{
	Use:   "reflect <topic>",
	Short: "Reflection: draft, critique, revise until approved",
	Long: `Write a short blog post with an evaluator-optimizer loop: a writer
drafts the post, a critic reviews it, and the writer revises until the
critic approves or the round budget runs out.

Examples:
  agentflow reflect "why Go is good for CLI tools"
  agentflow reflect "testing strategies" --rounds 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReflect,
}

func init() {
	rootCmd.AddCommand(reflectCmd)
	reflectCmd.Flags().IntVar(&reflectMaxRounds, "rounds", 3, "Maximum critique/revise rounds")
}

const (
	writerPrompt = `You are a technical blog author. Write a short blog post
(3-4 paragraphs) on the topic the user provides. Respond with the post
only.`

	criticPrompt = `You are a demanding editor reviewing a blog post. If the
post is clear, accurate, and engaging, respond with exactly APPROVED.
Otherwise respond with a numbered list of specific improvements.`

	revisePrompt = `You are a technical blog author revising your post. You
are given the current draft and the editor's feedback. Apply the feedback
and respond with the revised post only.`
)

// reviewState carries the draft through the critique/revise loop.
type reviewState struct {
	Draft    string
	Feedback string
	Approved bool
}

func runReflect(cmd *cobra.Command, args []string) error {
	provider, cfg, err := setupProvider()
	if err != nil {
		return err
	}
	topic := strings.Join(args, " ")

	draftStep := func(ctx context.Context, input any) (any, error) {
		topic, ok := input.(string)
		if !ok {
			return nil, fmt.Errorf("expected string input, got %T", input)
		}
		draft, err := generateText(ctx, provider, cfg, writerPrompt, topic)
		if err != nil {
			return nil, err
		}
		return reviewState{Draft: draft}, nil
	}

	refineStep := workflow.TypedStep(func(ctx context.Context, state reviewState) (reviewState, error) {
		verdict, err := generateText(ctx, provider, cfg, criticPrompt, state.Draft)
		if err != nil {
			return state, err
		}
		if strings.Contains(strings.ToUpper(verdict), "APPROVED") {
			state.Approved = true
			state.Feedback = ""
			return state, nil
		}
		state.Feedback = verdict

		revision := fmt.Sprintf("Draft:\n%s\n\nEditor feedback:\n%s", state.Draft, state.Feedback)
		revised, err := generateText(ctx, provider, cfg, revisePrompt, revision)
		if err != nil {
			return state, err
		}
		state.Draft = revised
		return state, nil
	})

	needsWork := func(input any) bool {
		state, ok := input.(reviewState)
		return ok && !state.Approved
	}

	flow := workflow.New("blog-reflection").
		Observe(flowObserver()).
		Step("draft", draftStep).
		Loop("refine", needsWork, refineStep, reflectMaxRounds)

	out, err := flow.Run(cmd.Context(), topic)
	if err != nil {
		return err
	}
	state, ok := out.(reviewState)
	if !ok {
		return fmt.Errorf("unexpected loop output type %T", out)
	}
	printResult(state.Draft)
	return nil
}
