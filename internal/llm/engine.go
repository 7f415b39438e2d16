package llm

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const defaultMaxTurns = 10

// getMaxTurns returns the max turns from request, with fallback to default
func getMaxTurns(req Request) int {
	if req.MaxTurns > 0 {
		return req.MaxTurns
	}
	return defaultMaxTurns
}

// Engine orchestrates the agentic loop: stream a model turn, execute
// any tool calls it makes, feed the results back, and repeat until the
// model answers without tools or the turn limit is hit.
type Engine struct {
	provider Provider
	tools    *ToolRegistry
}

func NewEngine(provider Provider, tools *ToolRegistry) *Engine {
	if tools == nil {
		tools = NewToolRegistry()
	}
	return &Engine{provider: provider, tools: tools}
}

func (e *Engine) RegisterTool(tool Tool) {
	e.tools.Register(tool)
}

func (e *Engine) Tools() *ToolRegistry {
	return e.tools
}

func (e *Engine) Provider() Provider {
	return e.provider
}

// Stream runs the full agentic loop as a single event stream. Tool
// specs from the registry are added to the request automatically.
func (e *Engine) Stream(ctx context.Context, req Request) (Stream, error) {
	if len(req.Tools) == 0 {
		req.Tools = e.tools.AllSpecs()
	}
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		return e.runLoop(ctx, req, events)
	}), nil
}

func (e *Engine) runLoop(ctx context.Context, req Request, events chan<- Event) error {
	maxTurns := getMaxTurns(req)

	for attempt := 0; attempt < maxTurns; attempt++ {
		if attempt > 0 {
			// Follow-up turns always let the model decide
			req.ToolChoice = ToolChoice{Mode: ToolChoiceAuto}
		}

		stream, err := e.provider.Stream(ctx, req)
		if err != nil {
			return err
		}

		var toolCalls []ToolCall
		var textBuilder strings.Builder
		var reasoningBuilder strings.Builder
		for {
			event, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				stream.Close()
				return err
			}
			if event.Type == EventError && event.Err != nil {
				stream.Close()
				return event.Err
			}
			switch event.Type {
			case EventTextDelta:
				textBuilder.WriteString(event.Text)
			case EventReasoningDelta:
				reasoningBuilder.WriteString(event.Text)
			case EventToolCall:
				if event.Tool != nil {
					toolCalls = append(toolCalls, *event.Tool)
				}
				continue
			case EventDone:
				continue
			}
			events <- event
		}
		stream.Close()

		if len(toolCalls) == 0 {
			events <- Event{Type: EventDone}
			return nil
		}

		toolCalls = ensureToolCallIDs(toolCalls)
		toolCalls = dedupeToolCalls(toolCalls)

		// Forward the calls before executing so consumers see them in
		// stream order, then execute and forward the results.
		for i := range toolCalls {
			call := toolCalls[i]
			events <- Event{Type: EventToolCall, Tool: &call}
		}

		if attempt == maxTurns-1 {
			return fmt.Errorf("agentic loop exceeded max turns (%d)", maxTurns)
		}

		results, err := e.executeToolCalls(ctx, toolCalls, events)
		if err != nil {
			return err
		}

		req.Messages = append(req.Messages, buildAssistantMessage(textBuilder.String(), toolCalls, reasoningBuilder.String()))
		for _, result := range results {
			req.Messages = append(req.Messages, toolResultToMessage(result))
		}
	}

	return fmt.Errorf("agentic loop ended unexpectedly")
}

// buildAssistantMessage creates an assistant message with text, tool
// calls, and optional reasoning.
func buildAssistantMessage(text string, toolCalls []ToolCall, reasoning string) Message {
	var parts []Part
	if text != "" || reasoning != "" {
		parts = append(parts, Part{Type: PartText, Text: text, Reasoning: reasoning})
	}
	for i := range toolCalls {
		call := toolCalls[i]
		parts = append(parts, Part{Type: PartToolCall, ToolCall: &call})
	}
	return Message{Role: RoleAssistant, Parts: parts}
}

func toolResultToMessage(result ToolResult) Message {
	if result.IsError {
		return ToolErrorMessage(result.ID, result.Name, result.Content)
	}
	return ToolResultMessage(result.ID, result.Name, result.Content)
}

// executeToolCalls executes the calls, in parallel when there is more
// than one. Results come back in the original call order; EventToolResult
// events may interleave arbitrarily, consumers correlate by ID.
func (e *Engine) executeToolCalls(ctx context.Context, calls []ToolCall, events chan<- Event) ([]ToolResult, error) {
	if len(calls) == 1 {
		result := e.tools.ExecuteCall(ctx, calls[0])
		events <- Event{Type: EventToolResult, Result: &result}
		return []ToolResult{result}, nil
	}

	results := make([]ToolResult, len(calls))
	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		group.Go(func() error {
			result := e.tools.ExecuteCall(ctx, call)
			mu.Lock()
			results[i] = result
			mu.Unlock()
			select {
			case events <- Event{Type: EventToolResult, Result: &result}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ensureToolCallIDs fills in IDs for providers that omit them.
func ensureToolCallIDs(calls []ToolCall) []ToolCall {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = fmt.Sprintf("call-%d", i+1)
		}
	}
	return calls
}

// dedupeToolCalls drops repeated calls with the same ID. Some
// OpenAI-compatible servers emit the final call twice.
func dedupeToolCalls(calls []ToolCall) []ToolCall {
	seen := make(map[string]bool, len(calls))
	out := calls[:0]
	for _, call := range calls {
		if call.ID != "" && seen[call.ID] {
			continue
		}
		seen[call.ID] = true
		out = append(out, call)
	}
	return out
}
