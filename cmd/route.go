package cmd

import (
	"context"
	"fmt"
	"strings"

	"agentflow/internal/config"
	"agentflow/internal/llm"
	"agentflow/internal/tools"
	"agentflow/internal/workflow"
	"github.com/spf13/cobra"
)

var routeCmd = &cobra.Command{
	Use:   "route <message>",
	Short: "Routing: classify a support request and dispatch a handler",
	Long: `Classify an incoming customer-support message as billing, technical,
or general, then hand it to the matching specialist. Billing and technical
handlers can look up and file tickets.

Examples:
  agentflow route "I was charged twice this month"
  agentflow route "The app crashes when I upload a photo"
  agentflow route "What are your office hours?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)
}

const classifyPrompt = `You are a support-ticket triager. Classify the
user's message into exactly one category. Respond with a single word:
billing, technical, or general.`

const billingPrompt = `You are a billing support specialist. Resolve the
customer's issue. Look up any ticket they mention; if the issue needs
follow-up, create a ticket for it. Finish with a short summary for the
customer.`

const technicalPrompt = `You are a technical support engineer. Diagnose
the customer's problem and suggest concrete steps. Look up any ticket
they mention; create one if the problem needs escalation. Finish with a
short summary for the customer.`

const generalPrompt = `You are a friendly support agent. Answer the
customer's question directly and briefly.`

func classifyStep(provider llm.Provider, cfg *config.Config) workflow.SelectorFunc {
	return func(ctx context.Context, input any) (string, error) {
		message, ok := input.(string)
		if !ok {
			return "", fmt.Errorf("expected string input, got %T", input)
		}
		answer, err := generateText(ctx, provider, cfg, classifyPrompt, message)
		if err != nil {
			return "", err
		}
		category := strings.ToLower(strings.TrimSpace(answer))
		for _, known := range []string{"billing", "technical", "general"} {
			if strings.Contains(category, known) {
				return known, nil
			}
		}
		return "general", nil
	}
}

func handlerStep(engine *llm.Engine, cfg *config.Config, system string) workflow.StepFunc {
	return func(ctx context.Context, input any) (any, error) {
		message, ok := input.(string)
		if !ok {
			return nil, fmt.Errorf("expected string input, got %T", input)
		}
		return engineText(ctx, engine, cfg, system, message)
	}
}

func runRoute(cmd *cobra.Command, args []string) error {
	provider, cfg, err := setupProvider()
	if err != nil {
		return err
	}
	message := strings.Join(args, " ")

	store := tools.NewTicketStore()
	registry := llm.NewToolRegistry()
	registry.Register(tools.NewLookupTicketTool(store))
	registry.Register(tools.NewCreateTicketTool(store))
	engine := llm.NewEngine(provider, registry)

	flow := workflow.New("support-router").
		Observe(flowObserver()).
		Switch("dispatch", classifyStep(provider, cfg), map[string]workflow.StepFunc{
			"billing":   handlerStep(engine, cfg, billingPrompt),
			"technical": handlerStep(engine, cfg, technicalPrompt),
			"general":   promptStep(provider, cfg, generalPrompt),
		}, promptStep(provider, cfg, generalPrompt))

	out, err := flow.Run(cmd.Context(), message)
	if err != nil {
		return err
	}
	reply, ok := out.(string)
	if !ok {
		return fmt.Errorf("unexpected router output type %T", out)
	}
	printResult(reply)
	return nil
}
