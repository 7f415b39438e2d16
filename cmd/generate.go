package cmd

import (
	"context"
	"fmt"
	"os"

	"agentflow/internal/config"
	"agentflow/internal/llm"
	"agentflow/internal/workflow"
)

// generateText runs a single non-streaming model call and returns the
// accumulated text.
func generateText(ctx context.Context, provider llm.Provider, cfg *config.Config, system, user string) (string, error) {
	req := llm.Request{
		Messages: []llm.Message{
			llm.SystemText(system),
			llm.UserText(user),
		},
		Temperature:     cfg.Defaults.Temperature,
		MaxOutputTokens: cfg.Defaults.MaxOutputTokens,
	}
	resp, err := llm.Generate(ctx, provider, req)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// promptStep adapts a system prompt into a workflow step whose input is
// the previous step's text output.
func promptStep(provider llm.Provider, cfg *config.Config, system string) workflow.StepFunc {
	return func(ctx context.Context, input any) (any, error) {
		user, ok := input.(string)
		if !ok {
			return nil, fmt.Errorf("expected string input, got %T", input)
		}
		return generateText(ctx, provider, cfg, system, user)
	}
}

// engineText drives an agentic tool loop to completion and returns the
// final assistant text.
func engineText(ctx context.Context, engine *llm.Engine, cfg *config.Config, system, user string) (string, error) {
	req := llm.Request{
		Messages: []llm.Message{
			llm.SystemText(system),
			llm.UserText(user),
		},
		Temperature:     cfg.Defaults.Temperature,
		MaxOutputTokens: cfg.Defaults.MaxOutputTokens,
		MaxTurns:        cfg.Defaults.MaxTurns,
	}
	stream, err := engine.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	resp, err := llm.Collect(stream)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func flowObserver() workflow.Observer {
	if flagQuiet {
		return workflow.NoopObserver{}
	}
	return workflow.LogObserver{W: os.Stderr}
}
